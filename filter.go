package sesiweb

// BuildFilter narrows a build listing to entries whose fields equal the
// given values exactly. Keys name the listing's JSON fields: product,
// platform, version, build, date, release, status.
type BuildFilter map[string]string

// filterBuilds keeps the builds matching every filter pair. A key that names
// no build field fails with FilterKeyError instead of silently matching or
// dropping everything; keys are checked up front so an empty listing still
// rejects a bad filter.
func filterBuilds(builds []DailyBuild, filter BuildFilter) ([]DailyBuild, error) {
	for key := range filter {
		if _, ok := buildField(DailyBuild{}, key); !ok {
			return nil, &FilterKeyError{Key: key}
		}
	}

	kept := make([]DailyBuild, 0, len(builds))
	for _, b := range builds {
		if matchesFilter(b, filter) {
			kept = append(kept, b)
		}
	}
	return kept, nil
}

func matchesFilter(b DailyBuild, filter BuildFilter) bool {
	for key, want := range filter {
		got, _ := buildField(b, key)
		if got != want {
			return false
		}
	}
	return true
}

// buildField resolves a filter key to the entry's field value.
func buildField(b DailyBuild, key string) (string, bool) {
	switch key {
	case "product":
		return b.Product, true
	case "platform":
		return b.Platform, true
	case "version":
		return b.Version, true
	case "build":
		return b.Build, true
	case "date":
		return b.Date, true
	case "release":
		return b.Release, true
	case "status":
		return b.Status, true
	default:
		return "", false
	}
}
