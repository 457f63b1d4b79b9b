package media

import "strings"

// Canonical genre slugs.
const (
	GenreAction      = "action"
	GenreAdventure   = "adventure"
	GenreAnimation   = "animation"
	GenreAnime       = "anime"
	GenreComedy      = "comedy"
	GenreCrime       = "crime"
	GenreDocumentary = "documentary"
	GenreDrama       = "drama"
	GenreFamily      = "family"
	GenreFantasy     = "fantasy"
	GenreHistory     = "history"
	GenreHoliday     = "holiday"
	GenreHorror      = "horror"
	GenreKids        = "children"
	GenreMusic       = "music"
	GenreMusical     = "musical"
	GenreMystery     = "mystery"
	GenreNews        = "news"
	GenreReality     = "reality"
	GenreRomance     = "romance"
	GenreScifi       = "science-fiction"
	GenreShort       = "short"
	GenreSoap        = "soap"
	GenreSport       = "sporting-events"
	GenreSuperhero   = "superhero"
	GenreSuspense    = "suspense"
	GenreTalk        = "talk-show"
	GenreThriller    = "thriller"
	GenreTvMovie     = "tv-movie"
	GenreWar         = "war"
	GenreWestern     = "western"
	GenreGameShow    = "game-show"
	GenreMiniSeries  = "mini-series"
	GenrePolitics    = "politics"
)

var genreAliases = map[string][]string{
	"action & adventure":  {GenreAction, GenreAdventure},
	"sci-fi & fantasy":    {GenreScifi, GenreFantasy},
	"war & politics":      {GenreWar, GenrePolitics},
	"science fiction":     {GenreScifi},
	"sci-fi":              {GenreScifi},
	"science-fiction":     {GenreScifi},
	"kids":                {GenreKids},
	"children":            {GenreKids},
	"tv movie":            {GenreTvMovie},
	"talk":                {GenreTalk},
	"talk show":           {GenreTalk},
	"sport":               {GenreSport},
	"sports":              {GenreSport},
	"game show":           {GenreGameShow},
	"mini series":         {GenreMiniSeries},
	"miniseries":          {GenreMiniSeries},
	"documentary":         {GenreDocumentary},
	"reality-tv":          {GenreReality},
	"reality tv":          {GenreReality},
	"animation":           {GenreAnimation},
	"anime":               {GenreAnime, GenreAnimation},
	"home and garden":     nil,
	"food":                nil,
	"travel":              nil,
	"awards show":         nil,
	"special interest":    nil,
	"indie":               nil,
	"podcast":             nil,
	"sporting events":     {GenreSport},
	"film noir":           {GenreCrime},
	"biography":           {GenreHistory},
	"disaster":            {GenreAction},
	"eastern":             {GenreAction},
	"martial arts":        {GenreAction},
	"musical":             {GenreMusical},
	"soap opera":          {GenreSoap},
	"donghua":             {GenreAnimation},
	"superhero":           {GenreSuperhero},
	"suspense":            {GenreSuspense},
	"short":               {GenreShort},
	"family":              {GenreFamily},
	"holiday":             {GenreHoliday},
	"news":                {GenreNews},
	"history":             {GenreHistory},
	"mystery":             {GenreMystery},
	"romance":             {GenreRomance},
	"thriller":            {GenreThriller},
	"western":             {GenreWestern},
	"war":                 {GenreWar},
	"music":               {GenreMusic},
	"horror":              {GenreHorror},
	"fantasy":             {GenreFantasy},
	"drama":               {GenreDrama},
	"crime":               {GenreCrime},
	"comedy":              {GenreComedy},
	"adventure":           {GenreAdventure},
	"action":              {GenreAction},
	"reality":             {GenreReality},
	"soap":                {GenreSoap},
}

// NormalizeGenres maps provider genre names onto canonical slugs, keeping
// first-seen order and dropping genres without a canonical form.
func NormalizeGenres(names ...string) []string {
	var out []string
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		slugs, ok := genreAliases[key]
		if !ok {
			slugs = []string{strings.ReplaceAll(key, " ", "-")}
		}
		out = unique(out, slugs...)
	}
	return out
}
