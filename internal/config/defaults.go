package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.readTimeout", 15)
	v.SetDefault("server.writeTimeout", 15)
	v.SetDefault("server.maxFrameBytes", 4*1024*1024)
	v.SetDefault("server.corsOrigins", "*")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	// Focus smoothing
	v.SetDefault("focus.window", 10)
	v.SetDefault("focus.threshold", 0.6)

	// Classifier
	v.SetDefault("classifier.modelPath", "models/face_detection_yunet.onnx")
	v.SetDefault("classifier.confidence", 0.5)
	v.SetDefault("classifier.eyesClosedConfidence", 0.6)
	v.SetDefault("classifier.minEyeDistance", 0.1)
	v.SetDefault("classifier.maxEyeDistance", 0.4)
	v.SetDefault("classifier.timeout", "2s")

	// Persistence
	v.SetDefault("persistence.interval", "30s")
	v.SetDefault("persistence.timeout", "10s")
	v.SetDefault("persistence.sessionKind", "websocket_cv_tracking")
	v.SetDefault("persistence.http.enabled", false)
	v.SetDefault("persistence.http.maxRetries", 3)
	v.SetDefault("persistence.sqlite.enabled", true)
	v.SetDefault("persistence.sqlite.path", "data/focus.db")
	v.SetDefault("persistence.redis.enabled", false)
	v.SetDefault("persistence.redis.address", "localhost:6379")
	v.SetDefault("persistence.redis.db", 0)
	v.SetDefault("persistence.redis.poolSize", 10)
	v.SetDefault("persistence.redis.ttl", "24h")
	v.SetDefault("persistence.redis.channel", "focus:records")
	v.SetDefault("persistence.kafka.enabled", false)
	v.SetDefault("persistence.kafka.topic", "focus-records")
	v.SetDefault("persistence.sheets.enabled", false)
	v.SetDefault("persistence.sheets.range", "Sheet1!A:L")

	// Auth
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwtSecret", "default-secret")
	v.SetDefault("auth.tokenQueryParam", "token")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/api/metrics")
}
