package clients

import (
	"net/url"
	"strings"
)

// Routes builds the entity site endpoints of one community
type Routes struct {
	Base string
}

// NewRoutes returns routes under <communityURL>/site
func NewRoutes(communityURL string) Routes {
	return Routes{Base: strings.TrimRight(communityURL, "/") + "/site"}
}

func (r Routes) Types() string  { return r.Base + "/pub-types" }
func (r Routes) Stages() string { return r.Base + "/stages" }
func (r Routes) Fields() string { return r.Base + "/fields" }
func (r Routes) Pubs() string   { return r.Base + "/pubs" }

func (r Routes) MoveConstraints(stageID string) string {
	return r.Stages() + "/" + url.PathEscape(stageID) + "/move-constraints"
}

func (r Routes) Pub(id string) string {
	return r.Pubs() + "/" + url.PathEscape(id)
}

func (r Routes) Relations(id string) string {
	return r.Pub(id) + "/relations"
}
