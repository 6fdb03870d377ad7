package email

import (
	"context"
	"fmt"
	"strings"
)

// DefaultPseudoFolders are Gmail containers that hold no mail of their own
// or only duplicates.
var DefaultPseudoFolders = []string{"[Gmail]", "[Gmail].All Mail"}

// Exclusions is a set of folder names skipped when listing. A folder matches
// when its decoded name, its remote name or its local name is in the set.
type Exclusions map[string]struct{}

// NewExclusions builds an exclusion set from one or more name lists.
func NewExclusions(lists ...[]string) Exclusions {
	ex := make(Exclusions)
	for _, list := range lists {
		for _, name := range list {
			if name = strings.TrimSpace(name); name != "" {
				ex[name] = struct{}{}
			}
		}
	}
	return ex
}

// Excludes reports whether f is in the set.
func (ex Exclusions) Excludes(f Folder) bool {
	for _, name := range []string{f.Name, f.Remote, f.LocalName()} {
		if _, ok := ex[name]; ok {
			return true
		}
	}
	return false
}

// ListFolders returns every folder of the account except the excluded ones,
// in server order.
func (s *Session) ListFolders(ctx context.Context, ex Exclusions) ([]Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.conn == nil || (s.state != StateAuthenticated && s.state != StateSelected) {
		return nil, ErrNotConnected
	}

	all, err := s.conn.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	folders := make([]Folder, 0, len(all))
	for _, f := range all {
		if ex.Excludes(f) {
			s.log.Debug().Str("folder", f.Name).Msg("Skipping excluded folder")
			continue
		}
		folders = append(folders, f)
	}
	return folders, nil
}
