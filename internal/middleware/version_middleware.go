package middleware

import (
	"fmt"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/gorilla/mux"
)

const VersionHeader = "X-Version"

// VersionMatcher matches requests whose X-Version header is a semantic version
// equal to version. Requests without a matching header fall through to the
// router's not found handler.
func VersionMatcher(version string) (mux.MatcherFunc, error) {
	want, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid api version %q: %w", version, err)
	}

	return func(r *http.Request, _ *mux.RouteMatch) bool {
		header := r.Header.Get(VersionHeader)
		if header == "" {
			return false
		}
		got, err := semver.NewVersion(header)
		if err != nil {
			return false
		}
		return got.Equal(want)
	}, nil
}
