package hermes

const (
	SubjectCatalogRefreshed      = "kart.catalog.refreshed"
	SubjectCatalogRefreshRequest = "kart.catalog.refresh.request"

	StreamName     = "KART_EVENTS"
	StreamSubjects = "kart.>"
	StreamMaxAge   = "168h" // 7 days
)

func SubjectBuildComputed(buildID string) string { return "kart.build." + buildID + ".computed" }
