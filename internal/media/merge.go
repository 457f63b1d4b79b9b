package media

import "strings"

// Merge folds src into dst: scalars keep the first non-empty value, sets are
// unioned in first-seen order, ordered sequences keep dst's entries first,
// temp bags stay per provider and completeness is the conjunction. Id
// conflicts keep dst's value.
func Merge(dst, src Record) Record {
	out := dst.Clone()
	s := src.Clone()

	if out.Media == "" {
		out.Media = s.Media
	}
	if out.IDs == nil {
		out.IDs = IDs{}
	}
	out.IDs.Fill(s.IDs)
	if out.Show == nil && s.Show != nil {
		out.Show = IDs{}
	}
	out.Show.Fill(s.Show)

	out.Title = first(out.Title, s.Title)
	out.OriginalTitle = first(out.OriginalTitle, s.OriginalTitle)
	if out.Year == 0 {
		out.Year = s.Year
	}
	if out.Premiered.IsZero() {
		out.Premiered = s.Premiered
	}
	if out.Aired.IsZero() {
		out.Aired = s.Aired
	}
	if out.Season == 0 {
		out.Season = s.Season
	}
	if out.Episode == 0 {
		out.Episode = s.Episode
	}
	if out.Absolute == 0 {
		out.Absolute = s.Absolute
	}
	if out.Type == "" {
		out.Type = s.Type
	}
	if out.Duration == 0 {
		out.Duration = s.Duration
	}
	if out.Status == "" {
		out.Status = s.Status
	}
	out.Certificate = first(out.Certificate, s.Certificate)
	out.Plot = first(out.Plot, s.Plot)
	out.Tagline = first(out.Tagline, s.Tagline)
	out.Trailer = first(out.Trailer, s.Trailer)
	out.Homepage = first(out.Homepage, s.Homepage)
	out.Action = first(out.Action, s.Action)
	if out.Rating == 0 {
		out.Rating = s.Rating
	}
	if out.Votes == 0 {
		out.Votes = s.Votes
	}
	if out.Rank == 0 || (s.Rank > 0 && s.Rank < out.Rank) {
		out.Rank = s.Rank
	}

	out.Genres = unique(out.Genres, s.Genres...)
	out.Languages = unique(out.Languages, s.Languages...)
	out.Countries = unique(out.Countries, s.Countries...)
	out.Studios = unique(out.Studios, s.Studios...)
	out.Networks = unique(out.Networks, s.Networks...)
	out.Director = unique(out.Director, s.Director...)
	out.Writer = unique(out.Writer, s.Writer...)
	out.Creator = unique(out.Creator, s.Creator...)
	out.Aliases = unique(out.Aliases, s.Aliases...)
	out.Keywords = unique(out.Keywords, s.Keywords...)
	out.Cast = mergeCast(out.Cast, s.Cast)
	out.Parts = mergeParts(out.Parts, s.Parts)

	for k, v := range s.Voting.Providers {
		if _, ok := out.Voting.Providers[k]; !ok {
			if out.Voting.Providers == nil {
				out.Voting.Providers = make(map[string]Vote)
			}
			out.Voting.Providers[k] = v
		}
	}
	if out.Voting.User == nil {
		out.Voting.User = s.Voting.User
	}
	if len(out.Voting.Distribution) == 0 {
		out.Voting.Distribution = s.Voting.Distribution
	}
	for k, t := range s.Time {
		out.SetTime(k, t)
	}
	for k, n := range s.Count {
		if out.Count == nil {
			out.Count = make(map[string]int)
		}
		if _, ok := out.Count[k]; !ok {
			out.Count[k] = n
		}
	}
	for name, bag := range s.Extras {
		if _, ok := out.Extras[name]; ok {
			continue
		}
		if out.Extras == nil {
			out.Extras = make(map[string]map[string]any)
		}
		out.Extras[name] = bag
	}
	if out.Pack == nil {
		out.Pack = s.Pack
	}
	out.Complete = dst.Complete && src.Complete
	return out
}

func first(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func mergeCast(a, b []CastMember) []CastMember {
	if len(a) == 0 {
		return b
	}
	seen := make(map[string]struct{}, len(a))
	for _, c := range a {
		seen[strings.ToLower(c.Name)] = struct{}{}
	}
	for _, c := range b {
		if _, ok := seen[strings.ToLower(c.Name)]; ok {
			continue
		}
		seen[strings.ToLower(c.Name)] = struct{}{}
		c.Order = len(a)
		a = append(a, c)
	}
	return a
}

func mergeParts(a, b []IDs) []IDs {
	for _, p := range b {
		found := false
		for _, q := range a {
			if q.Shares(p) {
				q.Fill(p)
				found = true
				break
			}
		}
		if !found {
			a = append(a, p)
		}
	}
	return a
}
