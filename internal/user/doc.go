// Package user persists stockapi accounts.
//
// Repositories are bound to a single database.Session, so every read and
// write they perform belongs to the caller's unit of work:
//
//	err := mgr.WithSession(ctx, func(ctx context.Context, s *database.Session) error {
//	    u, err := user.NewRepository(s).Create(ctx, "alice", hash, false)
//	    ...
//	})
//
// Passwords arrive already hashed; this package never sees plaintext.
package user
