package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const statusJSON = `{
	"id": "103270115826048975",
	"created_at": "2019-12-08T03:48:33.901Z",
	"in_reply_to_id": "103270114455600428",
	"in_reply_to_account_id": "1",
	"sensitive": false,
	"spoiler_text": "",
	"visibility": "public",
	"language": "en",
	"uri": "https://example.social/users/amy/statuses/103270115826048975",
	"url": "https://example.social/@amy/103270115826048975",
	"replies_count": 5,
	"reblogs_count": 6,
	"favourites_count": 11,
	"favourited": false,
	"reblogged": false,
	"muted": false,
	"bookmarked": true,
	"content": "<p>hello world</p>",
	"reblog": null,
	"account": {
		"id": "1",
		"username": "amy",
		"acct": "amy",
		"display_name": "Amy",
		"locked": false,
		"bot": false,
		"created_at": "2016-03-16T00:00:00.000Z",
		"note": "<p>hi</p>",
		"url": "https://example.social/@amy",
		"avatar": "https://files.example.social/avatar.png",
		"avatar_static": "https://files.example.social/avatar.png",
		"header": "https://files.example.social/header.png",
		"header_static": "https://files.example.social/header.png",
		"followers_count": 320472,
		"following_count": 453,
		"statuses_count": 61163,
		"last_status_at": "2019-12-08",
		"fields": [{"name": "web", "value": "example.com", "verified_at": null}],
		"emojis": []
	},
	"media_attachments": [{
		"id": "22345792",
		"type": "image",
		"url": "https://files.example.social/original/media.jpeg",
		"preview_url": "https://files.example.social/small/media.jpeg",
		"description": "a picture",
		"blurhash": "UFBWY:8_0Jxv4mx]t8t64.%M-:IUWGWAt6M}"
	}],
	"mentions": [],
	"tags": [{"name": "introductions", "url": "https://example.social/tags/introductions"}],
	"emojis": [],
	"card": null,
	"poll": null
}`

func TestStatusRoundTrip(t *testing.T) {
	var first Status
	if err := json.Unmarshal([]byte(statusJSON), &first); err != nil {
		t.Fatalf("decode failed: %s", err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("encode failed: %s", err)
	}

	var second Status
	if err := json.Unmarshal(encoded, &second); err != nil {
		t.Fatalf("re-decode failed: %s", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round trip lost information (-first +second):\n%s", diff)
	}
}

func TestStatusFieldMapping(t *testing.T) {
	var status Status
	if err := json.Unmarshal([]byte(statusJSON), &status); err != nil {
		t.Fatalf("decode failed: %s", err)
	}

	if status.SpoilerText != "" {
		t.Errorf("unexpected spoiler text %q", status.SpoilerText)
	}
	if got := status.Account.DisplayName; got != "Amy" {
		t.Errorf("display_name not mapped, got %q", got)
	}
	if status.InReplyToID == nil || *status.InReplyToID != "103270114455600428" {
		t.Error("in_reply_to_id not mapped")
	}
	if status.FavouritesCount != 11 {
		t.Errorf("favourites_count = %d, want 11", status.FavouritesCount)
	}
	if len(status.MediaAttachments) != 1 || status.MediaAttachments[0].PreviewURL == "" {
		t.Error("media_attachments not mapped")
	}
}

// An absent interaction flag must decode to unknown, which is not the same
// state as false.
func TestAbsentFlagsAreUnknown(t *testing.T) {
	var status Status
	if err := json.Unmarshal([]byte(`{"id": "1", "content": "", "account": {"id": "2"}}`), &status); err != nil {
		t.Fatalf("decode failed: %s", err)
	}

	if status.Favourited != nil {
		t.Errorf("absent favourited decoded to %v, want unknown", *status.Favourited)
	}
	if status.Reblogged != nil {
		t.Errorf("absent reblogged decoded to %v, want unknown", *status.Reblogged)
	}

	var explicit Status
	if err := json.Unmarshal([]byte(`{"id": "1", "favourited": false, "account": {"id": "2"}}`), &explicit); err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if explicit.Favourited == nil || *explicit.Favourited {
		t.Error("explicit false favourited should decode to known false")
	}
}

func TestTarget(t *testing.T) {
	original := &Status{ID: "1", Content: "original"}
	boost := &Status{ID: "2", Reblog: original}

	if got := boost.Target(); got != original {
		t.Errorf("boost target = %q, want the boosted status", got.ID)
	}
	if got := original.Target(); got != original {
		t.Error("plain status should be its own target")
	}
}

func TestAccountRoundTrip(t *testing.T) {
	raw := `{
		"id": "1",
		"username": "amy",
		"acct": "amy@example.social",
		"display_name": "Amy",
		"locked": true,
		"bot": false,
		"created_at": "2016-03-16T00:00:00.000Z",
		"note": "",
		"url": "https://example.social/@amy",
		"avatar": "a.png",
		"avatar_static": "a.png",
		"header": "h.png",
		"header_static": "h.png",
		"followers_count": 10,
		"following_count": 20,
		"statuses_count": 30
	}`

	var first Account
	if err := json.Unmarshal([]byte(raw), &first); err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if first.LastStatusAt != nil {
		t.Error("absent last_status_at should stay unset")
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("encode failed: %s", err)
	}
	var second Account
	if err := json.Unmarshal(encoded, &second); err != nil {
		t.Fatalf("re-decode failed: %s", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("round trip lost information (-first +second):\n%s", diff)
	}
}
