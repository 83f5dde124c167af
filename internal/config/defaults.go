package config

import "github.com/spf13/viper"

// setDefaults registers every key with its default so that environment
// variables are picked up for keys absent from the config file.
func setDefaults(v *viper.Viper) {
	d := Default()

	// Emulator
	v.SetDefault("emulator.service_account", d.Emulator.ServiceAccount)
	v.SetDefault("emulator.key_type", d.Emulator.KeyType)
	v.SetDefault("emulator.auto_create_accounts", d.Emulator.AutoCreateAccounts)
	v.SetDefault("emulator.require_signatures", d.Emulator.RequireSignatures)
	v.SetDefault("emulator.compute_limit", d.Emulator.ComputeLimit)
	v.SetDefault("emulator.block_time", d.Emulator.BlockTime)
	v.SetDefault("emulator.subscriber_buffer", d.Emulator.SubscriberBuffer)

	// State storage
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.cache_size", d.Storage.CacheSize)
	v.SetDefault("storage.compression", d.Storage.Compression)
	v.SetDefault("storage.compression_threshold", d.Storage.CompressionThreshold)

	// Transaction log
	v.SetDefault("txlog.backend", d.TxLog.Backend)
	v.SetDefault("txlog.dsn", d.TxLog.DSN)

	// JSON-RPC
	v.SetDefault("rpc.addr", d.RPC.Addr)
	v.SetDefault("rpc.rate_limit", d.RPC.RateLimit)
	v.SetDefault("rpc.burst", d.RPC.Burst)
	v.SetDefault("rpc.timeout", d.RPC.Timeout)

	// Logging
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
