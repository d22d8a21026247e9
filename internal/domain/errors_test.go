package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	Convey("Given a classified error", t, func() {
		cause := errors.New("exit status 1")
		err := &Error{
			Kind:        KindDumpFailed,
			Op:          "pg_dump",
			Path:        "/var/backups/shop_data_2025-01-10.sql",
			Diagnostics: "pg_dump: error: connection refused\n",
			Err:         cause,
		}

		Convey("The message carries path and diagnostics", func() {
			So(err.Error(), ShouldEqual,
				"DumpFailed: pg_dump (path: /var/backups/shop_data_2025-01-10.sql): exit status 1, output: pg_dump: error: connection refused")
		})

		Convey("It matches its kind sentinel through wrapping", func() {
			wrapped := fmt.Errorf("scheduled backup: %w", err)
			So(errors.Is(wrapped, ErrDumpFailed), ShouldBeTrue)
			So(errors.Is(wrapped, ErrUploadFailed), ShouldBeFalse)
			So(errors.Is(wrapped, cause), ShouldBeTrue)

			kind, ok := KindOf(wrapped)
			So(ok, ShouldBeTrue)
			So(kind, ShouldEqual, KindDumpFailed)
		})

		Convey("Plain errors have no kind", func() {
			_, ok := KindOf(cause)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestDescriptor(t *testing.T) {
	Convey("File names are deterministic per day and mode", t, func() {
		day := mustDate("2025-01-10")
		desc := DumpDescriptor{DatabaseName: "shop", Mode: ModeDataOnly}
		So(desc.FileName(day), ShouldEqual, "shop_data_2025-01-10.sql")
		So(desc.FilePrefix(), ShouldEqual, "shop_data_")

		desc.Mode = ModeFull
		So(desc.FileName(day), ShouldEqual, "shop_full_2025-01-10.sql")
	})

	Convey("ParseDumpMode rejects unknown modes", t, func() {
		_, err := ParseDumpMode("schema")
		So(err, ShouldNotBeNil)
		mode, err := ParseDumpMode("full")
		So(err, ShouldBeNil)
		So(mode, ShouldEqual, ModeFull)
	})
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
