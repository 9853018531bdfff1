package identity

import (
	"context"

	"meetdir/internal/directory"
)

// App is a registered application, looked up by the URLs it serves.
// Read-only; apps are provisioned out of band.
type App struct {
	DN   string
	Name string
	URLs []string
}

// FindApp resolves the app registered for url.
func FindApp(ctx context.Context, conn *directory.Conn, url string) (*App, error) {
	e, err := conn.FindAppByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	return &App{
		DN:   e.DN,
		Name: e.First(directory.AttrOU),
		URLs: e.Values(directory.AttrLabeledURI),
	}, nil
}

func (a *App) String() string { return a.Name }
