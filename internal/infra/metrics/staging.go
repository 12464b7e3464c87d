package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(stagingCleanupFiles, stagingCleanupBytes)
}

var stagingCleanupFiles = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "courier_staging_cleanup_files_total",
		Help: "Staged files removed by cleanup sweeps.",
	},
)

var stagingCleanupBytes = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "courier_staging_cleanup_bytes_total",
		Help: "Bytes freed by staging cleanup sweeps.",
	},
)

func AddStagingCleanup(files int, bytes int64) {
	stagingCleanupFiles.Add(float64(files))
	stagingCleanupBytes.Add(float64(bytes))
}
