package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/render"
	"github.com/gaiakodi/gaiasource/internal/server"
)

// requestFlags are the request parameters every operation command accepts.
// Flag names match the HTTP query parameters with "-" for "_".
var requestFlags = []struct {
	name, short, usage string
}{
	{"media", "m", "media: movie, set, show, season, episode, person, list, mixed"},
	{"title", "", "title to look up"},
	{"year", "y", "release year"},
	{"season", "s", "season number"},
	{"episode", "e", "episode number"},
	{"imdb", "", "IMDb id"},
	{"tmdb", "", "TMDb id"},
	{"tvdb", "", "TVDB id"},
	{"trakt", "", "Trakt id"},
	{"slug", "", "Trakt slug"},
	{"sort", "", "sort: rank, newest, oldest, launched, home, popular, trending, rating, votes, title"},
	{"order", "", "order: ascending or descending"},
	{"page", "p", "page number"},
	{"limit", "l", "items per page"},
	{"niche", "", "niche tags, comma separated (e.g. anime,best)"},
	{"what", "", "detail facets: summary, people, studios, translations, aliases, ratings, releases, set-parts, pack"},
	{"release", "", "release kind: premiere, theatrical, digital, physical, television, new, home, future, finale"},
	{"window", "", "date window: days back (30), days ahead (-7) or start..end"},
	{"list", "", "list kind: items, watchlist, collection, favorites"},
	{"user", "", "list owner"},
	{"list-id", "", "list id"},
	{"dedup", "", "duplicate policy: keep-all, keep-first, keep-last, merge"},
	{"extended", "", "provider specific extensions"},
	{"years", "", "year range filter, lo..hi"},
	{"date", "", "date window filter"},
	{"rating", "", "rating range filter, lo..hi"},
	{"votes", "", "votes range filter, lo..hi"},
	{"duration", "", "runtime range filter in seconds, lo..hi"},
	{"seasons", "", "season count range filter, lo..hi"},
	{"rating-tier", "", "rating tier: minimal, lenient, normal, moderate, strict, extreme"},
	{"genre", "g", "genres, comma separated; prefix with - to exclude"},
	{"language", "", "original languages"},
	{"country", "", "origin countries"},
	{"certificate", "", "age certificates"},
	{"status", "", "statuses"},
	{"network", "", "networks"},
	{"company", "", "companies"},
	{"studio", "", "studios"},
	{"keyword", "", "keywords"},
	{"award", "", "awards"},
	{"action", "", "history actions"},
	{"episode-type", "", "episode types"},
	{"release-type", "", "release kinds a record must have"},
}

func addRequestFlags(cmd *cobra.Command) {
	for _, f := range requestFlags {
		cmd.Flags().StringP(f.name, f.short, "", f.usage)
	}
	cmd.Flags().Bool("primary", false, "genre must be the first genre")
	cmd.Flags().Bool("deviation", false, "allow a one year deviation when matching titles")
}

// requestValues collects the flags that were set, plus positional words as
// the query, into request parameters.
func requestValues(flags *pflag.FlagSet, args []string) url.Values {
	v := url.Values{}
	flags.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})
	if len(args) > 0 {
		v.Set("query", strings.Join(args, " "))
	}
	return v
}

// operation describes one request command.
type operation struct {
	use, short string
	kind       media.Kind
	media      media.Media
	args       cobra.PositionalArgs
}

var operationCmds = []operation{
	{use: "search <query>", short: "Search titles across providers", kind: media.KindSearch, media: media.Movie, args: cobra.MinimumNArgs(1)},
	{use: "discover", short: "List titles by facets, niches and sort", kind: media.KindDiscover, media: media.Movie, args: cobra.NoArgs},
	{use: "release", short: "List titles released within a date window", kind: media.KindRelease, media: media.Movie, args: cobra.NoArgs},
	{use: "recommend", short: "List the providers' trending, popular and anticipated titles", kind: media.KindRecommend, media: media.Movie, args: cobra.NoArgs},
	{use: "list", short: "Read a user or curated list", kind: media.KindList, args: cobra.NoArgs},
	{use: "metadata [query]", short: "Fetch the merged detail record of one title", kind: media.KindMetadata, media: media.Movie, args: cobra.ArbitraryArgs},
	{use: "pack [query]", short: "Build the season and episode pack of a show", kind: media.KindPack, media: media.Show, args: cobra.ArbitraryArgs},
	{use: "resolve [query]", short: "Resolve the ids of a title across catalogs", kind: media.KindResolve, media: media.Movie, args: cobra.ArbitraryArgs},
}

func newOperationCmd(op operation) *cobra.Command {
	cmd := &cobra.Command{
		Use:   op.use,
		Short: op.short,
		Args:  op.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := requestValues(cmd.Flags(), args)
			if values.Get("media") == "" && op.media != "" {
				values.Set("media", string(op.media))
			}
			req, err := server.ParseValues(string(op.kind), values, time.Now())
			if err != nil {
				return err
			}
			return runRequest(cmd.Context(), req, os.Args[1:])
		},
	}
	addRequestFlags(cmd)
	return cmd
}

// runRequest executes req and prints the result.
func runRequest(ctx context.Context, req media.Request, argv []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	a.journal.Start(string(req.Kind), argv)

	ctx, cancel := a.operationContext(ctx)
	res := a.engine.Run(ctx, req)
	cancel()

	out := render.New(os.Stdout, outputFormat(), globalFlags.Plain)
	renderErr := out.Result(res)
	if err := a.close(); err != nil {
		a.logger.Warn("shutdown", "err", err)
	}
	if renderErr != nil {
		return renderErr
	}
	if res.Error != nil {
		return fmt.Errorf("%s failed: %s", req.Kind, res.Error.Code)
	}
	return nil
}

func outputFormat() string {
	if globalFlags.JSON {
		return render.FormatJSON
	}
	return render.FormatTable
}

func init() {
	for _, op := range operationCmds {
		rootCmd.AddCommand(newOperationCmd(op))
	}
}
