// Package logger provee un logger Zap singleton con scoping por contexto.
//
//   - Singleton: una instancia global inicializada con Init() en main.
//   - Context scoping: cada request lleva su logger con request_id, method y
//     path, inyectado por el middleware WithLogging.
//   - Environments: "dev" consola con colores, "prod" JSON.
//
// Uso:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Service: "token"})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("IssueToken"))
//	log.Info("token issued", logger.Username(u))
package logger
