// Package vault keeps the signed-in session across process restarts.
//
// Sessions are sealed with AES-256-GCM under a key derived with HKDF from a
// 32-byte master key and a scope (usually the auth service URL), then written
// to a Store. Two stores are provided: FileStore for a single device and
// RedisStore for hosts that share sessions between processes.
//
// # Usage
//
//	key, _ := cfg.MasterKey()
//	sealer, err := vault.NewSealer(key, apiURL)
//	if err != nil {
//	    return err
//	}
//	store, err := vault.NewFileStore(dir)
//	if err != nil {
//	    return err
//	}
//	sessions := vault.NewSessionVault(store, sealer)
//
//	client, err := authapi.New(apiCfg, authapi.WithPersistence(sessions))
//
// A session that can no longer be opened (for example after the master key
// was rotated) is reported as ErrUnreadable and removed, so the user signs in
// again instead of being stuck.
package vault
