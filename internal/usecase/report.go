package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/semmidev/dbkeeper/internal/domain"
)

// Report hands the collaborator's artifact at path to the operator.
type Report struct {
	path     string
	notifier domain.Notifier
	logger   domain.Logger
}

func NewReport(path string, notifier domain.Notifier, logger domain.Logger) *Report {
	return &Report{path: path, notifier: notifier, logger: logger}
}

// Execute sends the report if it exists. A missing file is not an error.
func (r *Report) Execute(ctx context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Infof("No report at %s, skipping delivery", r.path)
			return nil
		}
		return fmt.Errorf("stat report: %w", err)
	}

	if err := r.notifier.SendFileToOperator(ctx, r.path); err != nil {
		return fmt.Errorf("send report %s: %w", r.path, err)
	}

	r.logger.Infof("Report %s delivered", r.path)
	return nil
}
