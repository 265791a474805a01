// Package maintenance runs periodic cleanup jobs on a cron schedule.
//
// Each Task removes stale rows or entries and reports how many it removed.
// The Scheduler runs every task in turn; one failing task does not stop the
// others.
//
//	s, err := maintenance.New("@hourly", logger,
//		maintenance.Task{Name: "sessions", Run: sessions.DeleteExpired},
//	)
//	s.Start()
//	defer s.Stop(ctx)
package maintenance
