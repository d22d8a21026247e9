package domain

import "context"

type Notifier interface {
	Notify(ctx context.Context, message string) error
	SendFileToOperator(ctx context.Context, path string) error
}

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}
