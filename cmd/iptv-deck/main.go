// Command iptv-deck: sync an Xtream provider's catalog into a local cache and
// query it.
//
//	check       Probe the provider: connectivity, credentials, account state
//	refresh     Full catalog sync (-visible-only to skip hidden categories)
//	categories  List cached categories for a kind
//	items       List one category's items (cache first, fetch on miss)
//	series      Show a series' episodes grouped by season
//	url         Print the playback URL for an item
//	hide        Hide a category from navigation (show to undo)
//	favorites   List or edit favorites
//	groups      List or edit custom content groups
//	history     List watch history or record progress
//	stats       Show cache counts and last refresh time
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/iptvdeck/iptv-deck/internal/cache"
	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/config"
	"github.com/iptvdeck/iptv-deck/internal/groups"
	"github.com/iptvdeck/iptv-deck/internal/httpclient"
	"github.com/iptvdeck/iptv-deck/internal/refresh"
	"github.com/iptvdeck/iptv-deck/internal/resolve"
	"github.com/iptvdeck/iptv-deck/internal/storage"
	"github.com/iptvdeck/iptv-deck/internal/visibility"
	"github.com/iptvdeck/iptv-deck/internal/xtream"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: iptv-deck <command> [flags]

commands:
  check       probe the provider and report account state
  refresh     full catalog sync (-visible-only)
  categories  list categories (-kind live|movie|series)
  items       list a category's items (-kind ... -category N)
  series      show a series' episodes by season (-id N)
  url         print playback URL (-kind ... -id N [-ext mp4])
  hide, show  toggle a category (-kind ... -category N)
  favorites   list favorites, or -add N / -remove N (-kind ...)
  groups      list groups, or -create NAME (-kind ...), -delete ID, -group ID -add N
  history     list history, or -record -kind ... -id N -progress SECS
  stats       show cache counts and last refresh time
`)
	os.Exit(2)
}

func main() {
	log.SetFlags(log.LstdFlags)
	if len(os.Args) < 2 {
		usage()
	}

	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer app.db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "check":
		err = app.check(ctx)
	case "refresh":
		err = app.refresh(ctx, args)
	case "categories":
		err = app.categories(args)
	case "items":
		err = app.items(ctx, args)
	case "series":
		err = app.series(ctx, args)
	case "url":
		err = app.streamURL(args)
	case "hide", "show":
		err = app.setVisible(args, cmd == "show")
	case "favorites":
		err = app.favorites(args)
	case "groups":
		err = app.groups(args)
	case "history":
		err = app.history(args)
	case "stats":
		err = app.stats()
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// app wires the client, cache and state stores for one provider.
type app struct {
	cfg    *config.Config
	db     *storage.DB
	client *xtream.Client
	store  *cache.Store
	vis    *visibility.Filter
	grp    *groups.Manager
	orch   *refresh.Orchestrator
	res    *resolve.Resolver
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.DBPath, err)
	}

	httpclient.GlobalHostSem = httpclient.NewHostSemaphore(cfg.HostConcurrency)
	client := xtream.New(cfg.ProviderBaseURL, cfg.ProviderUser, cfg.ProviderPass)
	client.HTTPClient = httpclient.WithTimeout(cfg.Timeout)
	client.Retry = httpclient.RetryPolicy{Retries: cfg.Retries, Delay: cfg.RetryDelay}

	store := cache.New(db)
	if err := store.LoadServer(cfg.ServerID); err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	vis := visibility.NewFilter(db)
	if err := vis.LoadServer(cfg.ServerID); err != nil {
		return nil, fmt.Errorf("load visibility: %w", err)
	}
	grp := groups.NewManager(db)
	if err := grp.LoadServer(cfg.ServerID); err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	fav := resolve.NewFavorites(db)
	if err := fav.LoadServer(cfg.ServerID); err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	hist := resolve.NewHistory(db)
	if err := hist.LoadServer(cfg.ServerID); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	live := refresh.NewLiveState()
	orch := refresh.New(client, store, vis, live)
	if cfg.PaceInterval > 0 {
		orch.Limiter = rate.NewLimiter(rate.Every(cfg.PaceInterval), 1)
	} else {
		orch.Limiter = nil
	}
	orch.DoneLinger = 0 // CLI runs print stats and exit; no UI to linger for

	res := &resolve.Resolver{
		Cache:      store,
		Live:       live,
		Visibility: vis,
		Groups:     grp,
		Favorites:  fav,
		History:    hist,
	}

	return &app{cfg: cfg, db: db, client: client, store: store, vis: vis, grp: grp, orch: orch, res: res}, nil
}

func (a *app) check(ctx context.Context) error {
	r := a.client.Probe(ctx)
	fmt.Printf("status:  %s\n", r.Status)
	fmt.Printf("latency: %dms\n", r.LatencyMs)
	if r.Auth != nil {
		fmt.Printf("account: %s (expires %s)\n", r.Auth.Username, r.Auth.ExpDate)
	}
	if r.Err != nil {
		return r.Err
	}
	return nil
}

func (a *app) refresh(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	visibleOnly := fs.Bool("visible-only", false, "skip hidden categories during item fetch")
	fs.Parse(args)

	run := refresh.NewRun()

	// First interrupt asks the run to stop at its next checkpoint; a second
	// one cancels outright.
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sig:
			log.Print("stop requested; finishing current fetch (interrupt again to abort)")
			run.RequestStop()
		case <-runCtx.Done():
			return
		}
		select {
		case <-sig:
			cancel()
		case <-runCtx.Done():
		}
	}()

	// Progress ticker for the terminal.
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(2 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				st := run.Status()
				log.Printf("%3d%% %s", st.Percent, st.Phase)
			case <-done:
				return
			}
		}
	}()

	stats, err := a.orch.Refresh(runCtx, run, a.cfg.ServerID, *visibleOnly)
	close(done)
	if err != nil {
		return err
	}
	st := run.Status()
	log.Printf("refresh %s", st.State)
	printStats(stats)
	return nil
}

func (a *app) categories(args []string) error {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	kindFlag := fs.String("kind", "live", "live, movie or series")
	fs.Parse(args)
	kind := catalog.Kind(*kindFlag)
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", *kindFlag)
	}

	cats, ok := a.store.Categories(a.cfg.ServerID, kind)
	if !ok {
		return fmt.Errorf("no cached %s categories; run refresh first", kind.Label())
	}
	cats = a.vis.VisibleCategories(a.cfg.ServerID, cats)
	for _, c := range cats {
		fmt.Printf("%6d  %s\n", c.ID, c.Name)
	}
	return nil
}

func (a *app) items(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("items", flag.ExitOnError)
	kindFlag := fs.String("kind", "live", "live, movie or series")
	categoryID := fs.Int("category", 0, "category id")
	fs.Parse(args)
	kind := catalog.Kind(*kindFlag)
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", *kindFlag)
	}
	if *categoryID == 0 {
		return fmt.Errorf("-category is required")
	}

	items, err := a.orch.LoadCategory(ctx, a.cfg.ServerID, kind, *categoryID)
	if err != nil {
		return err
	}
	for _, it := range items {
		fmt.Printf("%8d  %s\n", it.ItemID(), it.ItemName())
	}
	return nil
}

func (a *app) series(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("series", flag.ExitOnError)
	id := fs.Int("id", 0, "series id")
	fs.Parse(args)
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	detail, err := a.client.SeriesDetail(ctx, *id)
	if err != nil {
		return err
	}
	seasons := make([]int, 0, len(detail.EpisodesBySeason))
	for s := range detail.EpisodesBySeason {
		seasons = append(seasons, s)
	}
	sort.Ints(seasons)
	for _, s := range seasons {
		fmt.Printf("Season %d\n", s)
		for _, ep := range detail.EpisodesBySeason[s] {
			fmt.Printf("  %2dx%02d  %s\n", ep.SeasonNum, ep.EpisodeNum, ep.Title)
		}
	}
	return nil
}

func (a *app) streamURL(args []string) error {
	fs := flag.NewFlagSet("url", flag.ExitOnError)
	kindFlag := fs.String("kind", "live", "live, movie or series")
	id := fs.Int("id", 0, "stream id")
	ext := fs.String("ext", "", "container extension (defaults per kind)")
	fs.Parse(args)
	kind := catalog.Kind(*kindFlag)
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", *kindFlag)
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}
	fmt.Println(a.client.StreamURL(kind, *id, *ext))
	return nil
}

func (a *app) setVisible(args []string, visible bool) error {
	fs := flag.NewFlagSet("hide", flag.ExitOnError)
	kindFlag := fs.String("kind", "live", "live, movie or series")
	categoryID := fs.Int("category", 0, "category id")
	fs.Parse(args)
	kind := catalog.Kind(*kindFlag)
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", *kindFlag)
	}
	if *categoryID == 0 {
		return fmt.Errorf("-category is required")
	}
	a.vis.SetVisible(a.cfg.ServerID, kind, catalog.CategoryKey(*categoryID), visible)
	return nil
}

func (a *app) favorites(args []string) error {
	fs := flag.NewFlagSet("favorites", flag.ExitOnError)
	kindFlag := fs.String("kind", "live", "live, movie or series")
	add := fs.Int("add", 0, "mark an item id as favorite")
	remove := fs.Int("remove", 0, "unmark an item id")
	fs.Parse(args)
	kind := catalog.Kind(*kindFlag)
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", *kindFlag)
	}

	switch {
	case *add != 0:
		a.res.Favorites.Add(a.cfg.ServerID, kind, *add)
	case *remove != 0:
		a.res.Favorites.Remove(a.cfg.ServerID, kind, *remove)
	default:
		for _, it := range a.res.ResolveFavorites(a.cfg.ServerID, kind) {
			fmt.Printf("%8d  %s\n", it.ItemID(), it.ItemName())
		}
	}
	return nil
}

func (a *app) groups(args []string) error {
	fs := flag.NewFlagSet("groups", flag.ExitOnError)
	create := fs.String("create", "", "create a group with this name")
	kindFlag := fs.String("kind", "live", "live, movie or series (with -create)")
	del := fs.String("delete", "", "delete a group by id")
	groupID := fs.String("group", "", "group id to edit")
	add := fs.Int("add", 0, "add an item id to -group")
	remove := fs.Int("remove", 0, "remove an item id from -group")
	fs.Parse(args)

	switch {
	case *create != "":
		kind := catalog.Kind(*kindFlag)
		if !kind.Valid() {
			return fmt.Errorf("unknown kind %q", *kindFlag)
		}
		g := a.grp.Create(a.cfg.ServerID, *create, kind)
		fmt.Println(g.ID)
	case *del != "":
		a.grp.Delete(a.cfg.ServerID, *del)
	case *groupID != "" && *add != 0:
		return a.grp.AddContent(a.cfg.ServerID, *groupID, *add)
	case *groupID != "" && *remove != 0:
		return a.grp.RemoveContent(a.cfg.ServerID, *groupID, *remove)
	default:
		for _, g := range a.grp.Groups(a.cfg.ServerID) {
			fmt.Printf("%s  %-6s  %-20s  %d items\n", g.ID, g.Kind, g.Name, len(g.ContentIDs))
		}
	}
	return nil
}

func (a *app) history(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	record := fs.Bool("record", false, "record progress instead of listing")
	kindFlag := fs.String("kind", "movie", "live, movie or series")
	id := fs.Int("id", 0, "item id")
	progress := fs.Int("progress", 0, "resume position in seconds")
	fs.Parse(args)

	if *record {
		kind := catalog.Kind(*kindFlag)
		if !kind.Valid() {
			return fmt.Errorf("unknown kind %q", *kindFlag)
		}
		if *id == 0 {
			return fmt.Errorf("-id is required")
		}
		a.res.History.Record(a.cfg.ServerID, kind, *id, *progress)
		return nil
	}
	for _, h := range a.res.ResolveHistory(a.cfg.ServerID) {
		name := fmt.Sprintf("(%s %d)", h.Entry.Kind, h.Entry.ContentID)
		if h.Item != nil {
			name = h.Item.ItemName()
		}
		fmt.Printf("%s  %5ds  %s\n", h.Entry.UpdatedAt.Format("2006-01-02 15:04"), h.Entry.ProgressSecs, name)
	}
	return nil
}

func (a *app) stats() error {
	printStats(a.store.Stats(a.cfg.ServerID))
	return nil
}

func printStats(s catalog.RefreshStats) {
	fmt.Printf("categories: %d live, %d movie, %d series\n",
		s.LiveCategories, s.MovieCategories, s.SeriesCategories)
	fmt.Printf("items:      %d channels, %d movies, %d series\n",
		s.Channels, s.Movies, s.Series)
	if !s.LastUpdated.IsZero() {
		fmt.Printf("updated:    %s\n", s.LastUpdated.Format(time.RFC3339))
	}
}
