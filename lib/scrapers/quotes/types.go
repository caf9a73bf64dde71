package quotes

// Quote is one quotation block on a listing page. quotes are not
// deduplicated, a verbatim repeat is recorded twice.
type Quote struct {
	Text      string   `json:"quote"`
	Author    string   `json:"author"`
	AuthorURL *string  `json:"author_url"`
	Tags      []string `json:"tags"`
}

// Author is the biographical record behind a quote's author link. it is
// keyed by the URL it was fetched from and does not carry that URL
// itself. a failed fetch yields the zero record, so the authors output
// counts attempts, not successes.
type Author struct {
	Fullname   string  `json:"fullname"`
	BirthDate  *string `json:"birth_date"`
	BirthPlace string  `json:"birth_place"`
	Bio        string  `json:"bio"`
}
