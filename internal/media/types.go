package media

// Jellyfin wire shapes. Only the fields the tools use are decoded.

type jfItemsResponse struct {
	Items            []jfItem `json:"Items"`
	TotalRecordCount int      `json:"TotalRecordCount"`
}

func (r jfItemsResponse) items() []Item {
	items := make([]Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, it.item())
	}
	return items
}

type jfUserData struct {
	PlayedPercentage float64 `json:"PlayedPercentage"`
	Played           bool    `json:"Played"`
}

type jfPerson struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Role string `json:"Role"`
	Type string `json:"Type"`
}

type jfStudio struct {
	Name string `json:"Name"`
}

type jfMediaStream struct {
	Index        int    `json:"Index"`
	Type         string `json:"Type"`
	Language     string `json:"Language"`
	DisplayTitle string `json:"DisplayTitle"`
	IsDefault    bool   `json:"IsDefault"`
	IsExternal   bool   `json:"IsExternal"`
}

type jfMediaSource struct {
	ID           string          `json:"Id"`
	Name         string          `json:"Name"`
	MediaStreams []jfMediaStream `json:"MediaStreams"`
}

type jfItem struct {
	ID                string          `json:"Id"`
	Name              string          `json:"Name"`
	Type              string          `json:"Type"`
	ProductionYear    int             `json:"ProductionYear"`
	CommunityRating   float64         `json:"CommunityRating"`
	OfficialRating    string          `json:"OfficialRating"`
	Overview          string          `json:"Overview"`
	RunTimeTicks      int64           `json:"RunTimeTicks"`
	Genres            []string        `json:"Genres"`
	SeriesID          string          `json:"SeriesId"`
	SeriesName        string          `json:"SeriesName"`
	SeasonID          string          `json:"SeasonId"`
	ParentIndexNumber int             `json:"ParentIndexNumber"`
	IndexNumber       int             `json:"IndexNumber"`
	Role              string          `json:"Role"`
	UserData          *jfUserData     `json:"UserData"`
	Taglines          []string        `json:"Taglines"`
	Studios           []jfStudio      `json:"Studios"`
	People            []jfPerson      `json:"People"`
	MediaSources      []jfMediaSource `json:"MediaSources"`
}

func (it jfItem) item() Item {
	out := Item{
		ID:              it.ID,
		Name:            it.Name,
		Type:            ItemType(it.Type),
		ProductionYear:  it.ProductionYear,
		CommunityRating: it.CommunityRating,
		OfficialRating:  it.OfficialRating,
		Overview:        it.Overview,
		RunTimeTicks:    it.RunTimeTicks,
		Genres:          it.Genres,
		SeriesID:        it.SeriesID,
		SeriesName:      it.SeriesName,
		SeasonID:        it.SeasonID,
		Role:            it.Role,
	}
	switch out.Type {
	case TypeEpisode:
		out.SeasonNumber = it.ParentIndexNumber
		out.EpisodeNumber = it.IndexNumber
	case TypeSeason:
		out.SeasonNumber = it.IndexNumber
	}
	if it.UserData != nil {
		out.PlayedPercentage = it.UserData.PlayedPercentage
	}
	return out
}

func (it jfItem) details() *ItemDetails {
	d := &ItemDetails{
		Item:     it.item(),
		Taglines: it.Taglines,
	}
	for _, s := range it.Studios {
		d.Studios = append(d.Studios, s.Name)
	}
	for _, p := range it.People {
		d.People = append(d.People, Person(p))
	}
	for _, src := range it.MediaSources {
		ms := MediaSource{ID: src.ID, Name: src.Name}
		for _, st := range src.MediaStreams {
			if st.Type != "Subtitle" {
				continue
			}
			ms.Subtitles = append(ms.Subtitles, SubtitleStream{
				Index:        st.Index,
				Language:     st.Language,
				DisplayTitle: st.DisplayTitle,
				IsDefault:    st.IsDefault,
				IsExternal:   st.IsExternal,
			})
		}
		d.MediaSources = append(d.MediaSources, ms)
	}
	return d
}
