package record

import (
	"fmt"
	"strconv"
)

func ToUser(doc Document) (User, error) {
	r := &reader{doc: doc}
	u := User{
		ID:          r.id("_id"),
		Name:        r.text("name"),
		Email:       r.text("email"),
		DateJoined:  r.instant("dateJoined"),
		LastActive:  r.instant("lastActive"),
		TokenUsage:  r.count("tokenUsage", 0),
		TotalAmount: r.decimal("totalAmount"),
		Status:      enum(r, "status", UserStatuses),
	}
	if r.err != nil {
		return User{}, r.err
	}
	return u, nil
}

func ToQuery(doc Document) (Query, error) {
	r := &reader{doc: doc}
	q := Query{
		ID:         r.id("_id"),
		UserID:     r.ref("userId"),
		Prompt:     r.text("prompt"),
		ModelUsed:  r.text("modelUsed"),
		TokensUsed: r.count("tokensUsed", 0),
		Date:       r.instant("date"),
		Status:     enum(r, "status", QueryStatuses),
	}

	raw, _ := r.list("messages")
	q.Messages = make([]Message, 0, len(raw))
	for i, item := range raw {
		if r.err != nil {
			break
		}
		d, ok := item.(map[string]any)
		if !ok {
			r.fail("messages", inField("["+strconv.Itoa(i)+"]", invalid(item, "expected a document")))
			break
		}
		m, err := ToMessage(d)
		if err != nil {
			r.fail("messages", inField("["+strconv.Itoa(i)+"]", err))
			break
		}
		q.Messages = append(q.Messages, m)
	}

	if md, ok := r.sub("metadata"); ok {
		q.Metadata = queryMetadata(r, md)
	}
	if r.err != nil {
		return Query{}, r.err
	}
	return q, nil
}

func queryMetadata(parent *reader, doc Document) *QueryMetadata {
	r := &reader{doc: doc}
	md := &QueryMetadata{
		TotalProcessingTime: r.optFloat("totalProcessingTime"),
		Error:               r.optText("error"),
	}
	if ctx, ok := r.sub("context"); ok {
		cr := &reader{doc: ctx}
		md.Context = &QueryContext{
			Documents: cr.stringList("documents"),
			Apps:      cr.stringList("apps"),
		}
		if cr.err != nil {
			r.fail("context", cr.err)
		}
	}
	if r.err != nil {
		parent.fail("metadata", r.err)
		return nil
	}
	return md
}

func ToMessage(doc Document) (Message, error) {
	r := &reader{doc: doc}
	m := Message{
		Role:      enum(r, "role", messageRoles),
		Content:   r.text("content"),
		Timestamp: r.instant("timestamp"),
	}
	if md, ok := r.sub("metadata"); ok {
		mr := &reader{doc: md}
		m.Metadata = &MessageMetadata{
			TokensUsed:     mr.optInt("tokensUsed"),
			ModelUsed:      mr.optText("modelUsed"),
			ProcessingTime: mr.optFloat("processingTime"),
		}
		if mr.err != nil {
			r.fail("metadata", mr.err)
		}
	}
	if r.err != nil {
		return Message{}, r.err
	}
	return m, nil
}

func ToErrorEvent(doc Document) (ErrorEvent, error) {
	r := &reader{doc: doc}
	e := ErrorEvent{
		ID:          r.id("_id"),
		EventID:     r.text("eventId"),
		UserID:      r.ref("userId"),
		Title:       r.text("title"),
		Type:        r.text("type"),
		Status:      enum(r, "status", ErrorStatuses),
		Environment: r.text("environment"),
		Level:       enum(r, "level", errorLevels),
		Message:     r.text("message"),
		Stacktrace:  r.text("stacktrace"),
		Context:     r.freeform("context"),
		Metadata:    r.freeform("metadata"),
		Tags:        r.stringSet("tags"),
		FirstSeen:   r.instant("firstSeen"),
		LastSeen:    r.instant("lastSeen"),
		Count:       r.count("count", 1),
		Release:     r.text("release"),
	}

	if u, ok := r.sub("user"); ok {
		ur := &reader{doc: u}
		e.User = &ErrorUser{
			ID:       ur.text("id"),
			Email:    ur.text("email"),
			Username: ur.text("username"),
		}
		if ur.err != nil {
			r.fail("user", ur.err)
		}
	}
	if req, ok := r.sub("request"); ok {
		rr := &reader{doc: req}
		e.Request = &ErrorRequest{
			URL:     rr.text("url"),
			Method:  rr.text("method"),
			Headers: rr.textMap("headers"),
			Data:    rr.freeform("data"),
		}
		if rr.err != nil {
			r.fail("request", rr.err)
		}
	}
	if crumbs, ok := r.list("breadcrumbs"); ok {
		e.Breadcrumbs = make([]Breadcrumb, 0, len(crumbs))
		for i, item := range crumbs {
			d, ok := item.(map[string]any)
			if !ok {
				r.fail("breadcrumbs", inField("["+strconv.Itoa(i)+"]", invalid(item, "expected a document")))
				break
			}
			br := &reader{doc: d}
			b := Breadcrumb{
				Type:      br.text("type"),
				Category:  br.text("category"),
				Message:   br.text("message"),
				Timestamp: br.instant("timestamp"),
			}
			if br.err != nil {
				r.fail("breadcrumbs", inField("["+strconv.Itoa(i)+"]", br.err))
				break
			}
			e.Breadcrumbs = append(e.Breadcrumbs, b)
		}
	}

	if r.err != nil {
		return ErrorEvent{}, r.err
	}
	return e, nil
}

func ToUsers(docs []Document) ([]User, error) {
	return transformAll(docs, "user", ToUser)
}

func ToQueries(docs []Document) ([]Query, error) {
	return transformAll(docs, "query", ToQuery)
}

func ToErrorEvents(docs []Document) ([]ErrorEvent, error) {
	return transformAll(docs, "error", ToErrorEvent)
}

// transformAll stops at the first malformed document: a page is either fully
// canonical or not returned at all.
func transformAll[T any](docs []Document, kind string, fn func(Document) (T, error)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, d := range docs {
		rec, err := fn(d)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", kind, docLabel(d, i), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func docLabel(d Document, i int) string {
	if id, err := NormalizeID(d["_id"]); err == nil {
		return strconv.Quote(id)
	}
	return "#" + strconv.Itoa(i)
}
