package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbkeeper/internal/domain"
)

func TestRestoreLatest(t *testing.T) {
	Convey("Given an orchestrator over fake collaborators", t, func() {
		f := newFixture(t)
		ctx := context.Background()
		req := domain.RestoreRequest{RequestedBy: "admin", ConfirmDatabase: "shop"}

		Convey("An unconfirmed request touches nothing", func() {
			err := f.orchestrator().RestoreLatest(ctx, f.desc, domain.RestoreRequest{RequestedBy: "admin", ConfirmDatabase: "shop2"})
			So(err, ShouldEqual, domain.ErrNotConfirmed)

			err = f.orchestrator().RestoreLatest(ctx, f.desc, domain.RestoreRequest{ConfirmDatabase: "shop"})
			So(err, ShouldEqual, domain.ErrNotConfirmed)
			So(f.store.calls, ShouldBeEmpty)
		})

		Convey("An empty remote folder fails with NoBackupFound and no side effects", func() {
			err := f.orchestrator().RestoreLatest(ctx, f.desc, req)
			So(errors.Is(err, domain.ErrNoBackupFound), ShouldBeTrue)
			So(f.store.called("download"), ShouldEqual, 0)
			So(f.engine.restores, ShouldBeEmpty)

			_, statErr := os.Stat(f.opts.StagingDir)
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})

		Convey("Backups of other databases or modes are not candidates", func() {
			f.store.put("shop_full_2025-01-10.sql", f.now)
			f.store.put("crm_data_2025-01-10.sql", f.now)

			err := f.orchestrator().RestoreLatest(ctx, f.desc, req)
			So(errors.Is(err, domain.ErrNoBackupFound), ShouldBeTrue)
		})

		Convey("The newest backup is downloaded, restored and kept", func() {
			f.store.put("shop_data_2025-01-01.sql", f.now.Add(-10*day))
			f.store.put("shop_data_2025-01-10.sql", f.now.Add(-1*day))

			So(f.orchestrator().RestoreLatest(ctx, f.desc, req), ShouldBeNil)

			staged := filepath.Join(f.opts.StagingDir, "shop_data_2025-01-10.sql")
			So(f.store.calls, ShouldResemble, []string{"list", "download shop_data_2025-01-10.sql"})
			So(f.engine.restores, ShouldResemble, []restoreCall{{
				mode: domain.ModeDataOnly,
				path: staged,
				opts: domain.RestoreOptions{DisableTriggers: true},
			}})
			So(f.metrics.restores, ShouldResemble, []error{nil})

			_, err := os.Stat(staged)
			So(err, ShouldBeNil)
		})

		Convey("A dry run is passed to the engine and not counted", func() {
			f.store.put("shop_data_2025-01-10.sql", f.now)
			req.DryRun = true

			So(f.orchestrator().RestoreLatest(ctx, f.desc, req), ShouldBeNil)
			So(f.engine.restores, ShouldHaveLength, 1)
			So(f.engine.restores[0].opts.DryRun, ShouldBeTrue)
			So(f.metrics.restores, ShouldBeEmpty)
		})

		Convey("Full mode uses RestoreFull", func() {
			f.desc.Mode = domain.ModeFull
			f.store.put("shop_full_2025-01-10.sql", f.now)

			So(f.orchestrator().RestoreLatest(ctx, f.desc, req), ShouldBeNil)
			So(f.engine.restores, ShouldHaveLength, 1)
			So(f.engine.restores[0].mode, ShouldEqual, domain.ModeFull)
		})

		Convey("A compressed backup is decompressed first", func() {
			f.store.put("shop_data_2025-01-10.sql.gz", f.now)

			So(f.orchestrator().RestoreLatest(ctx, f.desc, req), ShouldBeNil)
			So(f.engine.restores[0].path, ShouldEqual, filepath.Join(f.opts.StagingDir, "shop_data_2025-01-10.sql"))
		})

		Convey("A listing failure is reported as DownloadFailed", func() {
			f.store.listErr = errors.New("401 unauthorized")

			err := f.orchestrator().RestoreLatest(ctx, f.desc, req)
			So(errors.Is(err, domain.ErrDownloadFailed), ShouldBeTrue)
			So(f.metrics.restores, ShouldHaveLength, 1)
		})
	})

	Convey("End to end: prune keeps day9 and restore picks it", t, func() {
		f := newFixture(t)
		day0 := f.now.Add(-11 * day)
		f.now = day0.Add(10 * day)
		f.engine.now = f.now
		f.store.now = f.now
		f.store.put("shop_data_2025-01-01.sql", day0)
		f.store.put("shop_data_2025-01-10.sql", day0.Add(9*day))

		objects, _ := f.store.ListAll(context.Background())
		So(names(SelectForDeletion(objects, 7, f.now)), ShouldResemble, []string{"shop_data_2025-01-01.sql"})

		So(f.orchestrator().RestoreLatest(context.Background(), f.desc, domain.RestoreRequest{RequestedBy: "admin", ConfirmDatabase: "shop"}), ShouldBeNil)
		So(f.store.called("download shop_data_2025-01-10.sql"), ShouldEqual, 1)
	})
}
