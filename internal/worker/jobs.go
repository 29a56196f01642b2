package worker

import "github.com/chainsocial/scoring-service/internal/webhook"

// PostJob is the payload of a queued post scoring job.
type PostJob struct {
	PostID            string `json:"post_id"`
	CreatorAddress    string `json:"creatorAddress"`
	InteractorAddress string `json:"interactorAddress,omitempty"`
	Text              string `json:"data"`
	Image             []byte `json:"image,omitempty"`
	WebhookURL        string `json:"webhookUrl,omitempty"`
}

// CommentJob is the payload of a queued comment scoring job.
type CommentJob struct {
	PostID            string `json:"post_id,omitempty"`
	CreatorAddress    string `json:"creatorAddress"`
	InteractorAddress string `json:"interactorAddress,omitempty"`
	Text              string `json:"data"`
	WebhookURL        string `json:"webhookUrl,omitempty"`
}

// WebhookJob is the payload of a queued webhook delivery.
type WebhookJob struct {
	URL     string          `json:"url"`
	Payload webhook.Payload `json:"payload"`
}

// awardAccount picks the account the points go to: the interactor when
// present, else the post's creator. Matches the submitting callers, which
// omit interactorAddress for self-originated content.
func awardAccount(creator, interactor string) string {
	if interactor != "" {
		return interactor
	}
	return creator
}
