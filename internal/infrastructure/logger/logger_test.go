package logger

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func readLog(path string) string {
	content, err := os.ReadFile(path)
	So(err, ShouldBeNil)
	return string(content)
}

func TestLogger(t *testing.T) {
	Convey("Given a log file in a directory that does not exist yet", t, func() {
		logFile := filepath.Join(t.TempDir(), "logs", "dbkeeper.log")

		Convey("New creates the directory and writes JSON lines", func() {
			logger, err := New("info", logFile)
			So(err, ShouldBeNil)

			logger.Infof("[%s] Dump created: %s", "shop", "/var/backups/shop_data_2025-01-10.sql")
			logger.Close()

			content := readLog(logFile)
			So(content, ShouldContainSubstring, `"level":"INFO"`)
			So(content, ShouldContainSubstring, "shop_data_2025-01-10.sql")
			So(content, ShouldContainSubstring, `"timestamp"`)
		})

		Convey("Lines below the configured level are dropped", func() {
			logger, err := New("warn", logFile)
			So(err, ShouldBeNil)

			logger.Infof("routine")
			logger.Warnf("Destructive restore from %s", "staged.sql")
			logger.Close()

			content := readLog(logFile)
			So(content, ShouldNotContainSubstring, "routine")
			So(content, ShouldContainSubstring, "Destructive restore")
		})

		Convey("An unknown level falls back to info", func() {
			logger, err := New("loud", logFile)
			So(err, ShouldBeNil)

			logger.Debugf("hidden")
			logger.Infof("shown")
			logger.Close()

			content := readLog(logFile)
			So(content, ShouldNotContainSubstring, "hidden")
			So(content, ShouldContainSubstring, "shown")
		})

		Convey("With attaches fields to every line", func() {
			logger, err := New("info", logFile)
			So(err, ShouldBeNil)

			logger.With("database", "shop").Infof("Starting backup")
			logger.Close()

			So(readLog(logFile), ShouldContainSubstring, `"database":"shop"`)
		})
	})

	Convey("Given console output only", t, func() {
		logger, err := New("debug", "")
		So(err, ShouldBeNil)
		So(func() { logger.Debugf("console") }, ShouldNotPanic)
		So(func() { logger.Close() }, ShouldNotPanic)
	})

	Convey("Given a log path that cannot be created", t, func() {
		blocker := filepath.Join(t.TempDir(), "file")
		So(os.WriteFile(blocker, nil, 0o644), ShouldBeNil)

		_, err := New("info", filepath.Join(blocker, "sub", "app.log"))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "failed to create log directory")
	})

	Convey("NewNop discards everything", t, func() {
		So(func() { NewNop().Errorf("dropped %d", 1) }, ShouldNotPanic)
	})
}
