/*
Package session serializes access to per-conversation state.

Turns within one session are strictly ordered: the manager holds a per-session
lock for the duration of each load-process-save cycle, with reference counting
to garbage collect locks for idle sessions. An optional distributed locker
extends the guarantee across replicas.
*/
package session
