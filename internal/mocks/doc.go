// Package mocks provides centralized mock implementations for testing.
//
// Mocks follow one pattern: function fields override behaviour, default
// values cover the common case, and every call is tracked for verification.
//
//	peer := mocks.NewMockPeer()
//	scheduler := task.NewScheduler(peer, task.DefaultSchedulerConfig(), logger)
//	t1 := scheduler.Enqueue(protocol.ActionLoadFile, data)
//	peer.Respond(protocol.Succeeded(t1.ID(), "loaded", nil))
//
// When adding a new mock, name the file after the interface being mocked.
package mocks
