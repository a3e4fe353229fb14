// Package admin mounts the debug HTTP routes of a conversion run.
package admin

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/lidar-samples/internal/httputil"
	"github.com/banshee-data/lidar-samples/internal/lidar/inspect"
	"github.com/banshee-data/lidar-samples/internal/lidar/samplestore"
)

// ProgressFunc returns a JSON-serialisable snapshot of run progress.
type ProgressFunc func() interface{}

// AttachAdminRoutes mounts /debug/ on mux: progress, and when a catalog is
// given, a tailsql console and a chart of the latest sample.
func AttachAdminRoutes(mux *http.ServeMux, catalog *samplestore.Catalog, progress ProgressFunc) error {
	debug := tsweb.Debugger(mux)

	debug.Handle("progress", "Conversion progress (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		httputil.WriteJSONOK(w, progress())
	}))

	if catalog == nil {
		return nil
	}

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(catalog.Path()), catalog.DB, &tailsql.DBOptions{
		Label: "Sample catalog",
	})
	debug.Handle("tailsql/", "SQL console over the sample catalog", tsql.NewMux())

	debug.Handle("latest-sample", "Scatter of the most recently written sample", latestSampleHandler(catalog))
	return nil
}

func latestSampleHandler(catalog *samplestore.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, run, err := catalog.LatestSample(r.Context())
		if err != nil {
			httputil.NotFound(w, fmt.Sprintf("no sample available: %v", err))
			return
		}
		sample, err := inspect.DecodeFile(nil, s.Path, run.ChannelCount, run.PointsPerChannel)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}

		var buf bytes.Buffer
		title := fmt.Sprintf("sample %d (run %s)", s.SampleIndex, run.RunID)
		if err := inspect.RenderHTML(&buf, sample, title); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
			return
		}
		httputil.WriteHTML(w, buf.Bytes())
	})
}
