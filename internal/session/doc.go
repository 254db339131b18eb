// Package session runs one measurement session against a connected Progressor.
//
// The Orchestrator is the only control flow issuing commands. Notifications are copied
// into a buffered channel and handled by a single pump goroutine running the Demux, which
// is therefore the only writer of the sample log. Command replies are attributed to the
// outstanding command held in State; since the protocol has no sequence numbers, a reply
// arriving after the quiescence interval is attributed to whatever command is outstanding
// by then.
package session
