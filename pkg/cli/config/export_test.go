package config

import "time"

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(clientID, clientSecret, botToken, signingSecret string) *Slack {
	return &Slack{
		clientID:      clientID,
		clientSecret:  clientSecret,
		botToken:      botToken,
		signingSecret: signingSecret,
		timeout:       time.Second,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, postgresDSN, tableName string) *Repository {
	return &Repository{
		backend:     backend,
		projectID:   projectID,
		postgresDSN: postgresDSN,
		tableName:   tableName,
	}
}

// NewRotationForTest creates a Rotation config for testing purposes
func NewRotationForTest(imageSource, viewConfig string) *Rotation {
	return &Rotation{imageSource: imageSource, viewConfig: viewConfig, concurrency: 2}
}
