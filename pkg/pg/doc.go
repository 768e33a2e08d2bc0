// Package pg connects to the Postgres database that backs the profile store
// and applies its schema with goose.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, profile.Migrations, profile.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//
// IsDuplicateKeyError and IsNotFoundError classify pgx errors for callers.
package pg
