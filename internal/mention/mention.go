// Package mention finds @username references in free text and resolves them to users.
package mention

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"press/internal/models"
)

// pattern matches an @ followed by a maximal run of word characters and - + _ . @.
var pattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`@([\p{L}\p{N}\p{M}_\-+.@]+)`)
})

var usernamePattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^[\p{L}\p{N}\p{M}_\-+.@]+$`)
})

// IsUsername reports whether name can be written as a mention in full.
func IsUsername(name string) bool {
	return usernamePattern().MatchString(name)
}

// Extract returns the usernames referenced in text, in order of first appearance, without duplicates.
func Extract(text string) []string {
	matches := pattern().FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UserLookup resolves exact usernames. Unknown names are simply absent from the result.
type UserLookup interface {
	GetByUsernames(ctx context.Context, usernames []string) ([]*models.User, error)
}

// Detector resolves mentions against the user store.
type Detector struct {
	users UserLookup
}

func NewDetector(users UserLookup) *Detector {
	return &Detector{users: users}
}

// Detect returns the users mentioned in text. Tokens naming no user are dropped.
func (d *Detector) Detect(ctx context.Context, text string) ([]*models.User, error) {
	names := Extract(text)
	if len(names) == 0 {
		return nil, nil
	}
	users, err := d.users.GetByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*models.User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	resolved := make([]*models.User, 0, len(byName))
	for _, name := range names {
		if u, ok := byName[name]; ok {
			resolved = append(resolved, u)
		}
	}
	return resolved, nil
}

// Render returns text escaped for HTML with every resolved mention turned into a
// link to the user's profile. Unresolved mentions stay as literal @name.
func (d *Detector) Render(ctx context.Context, text string) (string, error) {
	links, err := d.profileLinks(ctx, text)
	if err != nil {
		return "", err
	}
	return pattern().ReplaceAllStringFunc(html.EscapeString(text), func(tok string) string {
		name := tok[1:]
		href, ok := links[name]
		if !ok {
			return tok
		}
		return fmt.Sprintf("<a class='mention bold' href='%s'>@%s</a>", href, name)
	}), nil
}

// Markdown rewrites resolved mentions as markdown links so they survive markdown rendering.
func (d *Detector) Markdown(ctx context.Context, text string) (string, error) {
	links, err := d.profileLinks(ctx, text)
	if err != nil {
		return "", err
	}
	return pattern().ReplaceAllStringFunc(text, func(tok string) string {
		name := tok[1:]
		href, ok := links[name]
		if !ok {
			return tok
		}
		return fmt.Sprintf("[@%s](%s)", markdownEscaper.Replace(name), href)
	}), nil
}

var markdownEscaper = strings.NewReplacer(`_`, `\_`, `+`, `\+`, `.`, `\.`, `-`, `\-`)

// profileLinks maps each resolved username in text to its profile path.
func (d *Detector) profileLinks(ctx context.Context, text string) (map[string]string, error) {
	users, err := d.Detect(ctx, text)
	if err != nil {
		return nil, err
	}
	links := make(map[string]string, len(users))
	for _, u := range users {
		if u.Profile == nil {
			continue
		}
		links[u.Username] = u.Profile.URL()
	}
	return links, nil
}
