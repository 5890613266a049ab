package domain

// Status visibility levels accepted by the statuses endpoint.
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
	VisibilityDirect   = "direct"
)

// Status is a single post. Reblog, when non nil, points to the status being
// boosted; the server flattens deeper nesting, so the chain is at most one
// level long. The interaction flags (Favourited, Reblogged, Muted, Bookmarked)
// are nil when the response was produced for an unauthenticated view, which is
// distinct from false.
type Status struct {
	ID                 string            `json:"id"`
	CreatedAt          string            `json:"created_at"`
	InReplyToID        *string           `json:"in_reply_to_id,omitempty"`
	InReplyToAccountID *string           `json:"in_reply_to_account_id,omitempty"`
	Sensitive          bool              `json:"sensitive"`
	SpoilerText        string            `json:"spoiler_text"`
	Visibility         string            `json:"visibility"`
	Language           *string           `json:"language,omitempty"`
	URI                string            `json:"uri"`
	URL                *string           `json:"url,omitempty"`
	RepliesCount       int               `json:"replies_count"`
	ReblogsCount       int               `json:"reblogs_count"`
	FavouritesCount    int               `json:"favourites_count"`
	Favourited         *bool             `json:"favourited,omitempty"`
	Reblogged          *bool             `json:"reblogged,omitempty"`
	Muted              *bool             `json:"muted,omitempty"`
	Bookmarked         *bool             `json:"bookmarked,omitempty"`
	Content            string            `json:"content"`
	Reblog             *Status           `json:"reblog,omitempty"`
	Account            Account           `json:"account"`
	MediaAttachments   []MediaAttachment `json:"media_attachments"`
	Mentions           []Mention         `json:"mentions"`
	Tags               []Tag             `json:"tags"`
	Emojis             []Emoji           `json:"emojis"`
	Card               *Card             `json:"card,omitempty"`
	Poll               *Poll             `json:"poll,omitempty"`
}

// Target resolves a status to the post it actually displays: the boosted
// status for a boost, the status itself otherwise. Interaction requests must
// be issued against the target, not the wrapper.
func (s *Status) Target() *Status {
	if s.Reblog != nil {
		return s.Reblog
	}
	return s
}

type MediaAttachment struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	PreviewURL  string  `json:"preview_url"`
	RemoteURL   *string `json:"remote_url,omitempty"`
	Description *string `json:"description,omitempty"`
	Blurhash    *string `json:"blurhash,omitempty"`
}

type Mention struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	URL      string `json:"url"`
	Acct     string `json:"acct"`
}

type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Card struct {
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Type         string  `json:"type"`
	AuthorName   *string `json:"author_name,omitempty"`
	AuthorURL    *string `json:"author_url,omitempty"`
	ProviderName *string `json:"provider_name,omitempty"`
	ProviderURL  *string `json:"provider_url,omitempty"`
	HTML         *string `json:"html,omitempty"`
	Width        *int    `json:"width,omitempty"`
	Height       *int    `json:"height,omitempty"`
	Image        *string `json:"image,omitempty"`
	EmbedURL     *string `json:"embed_url,omitempty"`
	Blurhash     *string `json:"blurhash,omitempty"`
}

type Poll struct {
	ID          string       `json:"id"`
	ExpiresAt   *string      `json:"expires_at,omitempty"`
	Expired     bool         `json:"expired"`
	Multiple    bool         `json:"multiple"`
	VotesCount  int          `json:"votes_count"`
	VotersCount *int         `json:"voters_count,omitempty"`
	Voted       *bool        `json:"voted,omitempty"`
	OwnVotes    []int        `json:"own_votes,omitempty"`
	Options     []PollOption `json:"options"`
	Emojis      []Emoji      `json:"emojis"`
}

type PollOption struct {
	Title      string `json:"title"`
	VotesCount *int   `json:"votes_count,omitempty"`
}
