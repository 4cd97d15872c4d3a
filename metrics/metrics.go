package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/arpi-project/arpi/build"
)

// Distributions
var defaultMillisecondsDistribution = view.Distribution(
	1, 2, 5, 10, 20, 50, 100, 200, 300, 500, 750, // fast gateway round trips
	1000, 1500, 2000, 3000, 5000, 8000, 10000, 15000, 20000, // slow or failing over
	30000, 60000, 120000,
)

var bytesDistribution = view.Distribution(
	0, 1024, 4096, 16384, 32768, 65536, 131072, 196608, 262144, 1<<20, 12<<20, 64<<20, 256<<20,
)

// Tags
var (
	Version, _ = tag.NewKey("version")
	Commit, _  = tag.NewKey("commit")

	// gateway
	Endpoint, _ = tag.NewKey("endpoint")
	Method, _   = tag.NewKey("method")
	Host, _     = tag.NewKey("host")
	Status, _   = tag.NewKey("status")

	// upload
	FailureType, _ = tag.NewKey("failure_type")
)

// Measures
var (
	Info = stats.Int64("info", "Arbitrary counter to tag arpi info to", stats.UnitDimensionless)

	APIRequestDuration = stats.Float64("api/request_duration_ms", "Duration of gateway requests", stats.UnitMilliseconds)
	APIRequestFailover = stats.Int64("api/failover", "Counter of requests retried on another host", stats.UnitDimensionless)
	APIResponseSize    = stats.Int64("api/response_bytes", "Size of gateway response bodies", stats.UnitBytes)

	TxPosted          = stats.Int64("tx/posted", "Counter of transaction headers or inline bodies accepted", stats.UnitDimensionless)
	ChunkUploaded     = stats.Int64("upload/chunks", "Counter of chunks accepted by a gateway", stats.UnitDimensionless)
	ChunkBytes        = stats.Int64("upload/chunk_bytes", "Bytes of chunk data accepted by a gateway", stats.UnitBytes)
	ChunkUploadErrors = stats.Int64("upload/errors", "Counter of failed upload requests", stats.UnitDimensionless)
	ChunkDownloaded   = stats.Int64("download/chunks", "Counter of chunks fetched by offset", stats.UnitDimensionless)
)

var (
	InfoView = &view.View{
		Name:        "info",
		Description: "arpi client information",
		Measure:     Info,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Version, Commit},
	}
	APIRequestDurationView = &view.View{
		Measure:     APIRequestDuration,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Endpoint, Method, Status},
	}
	APIRequestFailoverView = &view.View{
		Measure:     APIRequestFailover,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Host},
	}
	APIResponseSizeView = &view.View{
		Measure:     APIResponseSize,
		Aggregation: bytesDistribution,
		TagKeys:     []tag.Key{Endpoint},
	}
	TxPostedView = &view.View{
		Measure:     TxPosted,
		Aggregation: view.Count(),
	}
	ChunkUploadedView = &view.View{
		Measure:     ChunkUploaded,
		Aggregation: view.Count(),
	}
	ChunkBytesView = &view.View{
		Measure:     ChunkBytes,
		Aggregation: view.Sum(),
	}
	ChunkUploadErrorsView = &view.View{
		Measure:     ChunkUploadErrors,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{FailureType},
	}
	ChunkDownloadedView = &view.View{
		Measure:     ChunkDownloaded,
		Aggregation: view.Count(),
	}
)

var views = []*view.View{
	InfoView,
	APIRequestDurationView,
	APIRequestFailoverView,
	APIResponseSizeView,
	TxPostedView,
	ChunkUploadedView,
	ChunkBytesView,
	ChunkUploadErrorsView,
	ChunkDownloadedView,
}

// DefaultViews is an array of OpenCensus views for metric gathering purposes
var DefaultViews = func() []*view.View {
	return views
}()

// RecordInfo tags the info measure with the build version.
func RecordInfo(ctx context.Context) error {
	ctx, err := tag.New(ctx,
		tag.Upsert(Version, build.BuildVersion),
		tag.Upsert(Commit, build.CurrentCommit),
	)
	if err != nil {
		return err
	}
	stats.Record(ctx, Info.M(1))
	return nil
}

func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Milliseconds())
}

// Timer is a function stopwatch, calling it records the elapsed time since
// Timer was called.
func Timer(ctx context.Context, m *stats.Float64Measure) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		stats.Record(ctx, m.M(SinceInMilliseconds(start)))
		return time.Since(start)
	}
}
