// Package logger builds the slog loggers used across the module and keeps
// attribute names consistent.
//
//	log := logger.New(
//		logger.FromConfig(cfg),
//		logger.WithAttr(slog.String("service", "authctl")),
//		logger.WithContextExtractors(logger.OperationIDExtractor),
//	)
//	log.ErrorContext(ctx, "profile seeding failed",
//		logger.UserID(user.ID),
//		logger.Error(err),
//		logger.Component("auth"),
//	)
//
// Components accept a *slog.Logger through a WithLogger option and fall back
// to Discard, so nothing is written unless the host wires a logger in.
package logger
