package picoserve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Args carries the parsed input of a resource call: body data (JSON object or
// urlencoded form) merged with query string parameters, plus bound path
// parameters.
type Args struct {
	Data   map[string]any
	Params map[string]string
}

// Resource capability interfaces. A resource is any value implementing a
// subset of these; the dispatcher derives the allowed methods from the
// capabilities present. Each capability returns the value to serialize and a
// status code; 0 means 200.
type (
	// Getter handles GET.
	Getter interface {
		Get(a Args) (any, int)
	}
	// Poster handles POST.
	Poster interface {
		Post(a Args) (any, int)
	}
	// Putter handles PUT.
	Putter interface {
		Put(a Args) (any, int)
	}
	// Deleter handles DELETE.
	Deleter interface {
		Delete(a Args) (any, int)
	}
)

func resourceMethods(res any) map[string]func(Args) (any, int) {
	calls := map[string]func(Args) (any, int){}
	if g, ok := res.(Getter); ok {
		calls[http.MethodGet] = g.Get
	}
	if p, ok := res.(Poster); ok {
		calls[http.MethodPost] = p.Post
	}
	if p, ok := res.(Putter); ok {
		calls[http.MethodPut] = p.Put
	}
	if d, ok := res.(Deleter); ok {
		calls[http.MethodDelete] = d.Delete
	}
	return calls
}

// resourceHandler adapts a capability map into a Handler. The router
// guarantees the request method is one of the map's keys. The response is a
// single fixed-length JSON body with HTTP/1.1 framing and an explicit
// Connection: close, so clients that wait for a defined length keep working.
func resourceHandler(calls map[string]func(Args) (any, int)) Handler {
	return func(ctx context.Context, r *Request, w *Response) error {
		args, err := parseArgs(r)
		if err != nil {
			return err
		}

		value, code := calls[r.Method](args)
		if code == 0 {
			code = http.StatusOK
		}
		if value == nil {
			return fmt.Errorf("resource %s %s returned no value", r.Method, r.Path)
		}
		body, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding resource response: %w", err)
		}

		_ = w.SetStatus(code)
		_ = w.SetVersion("1.1")
		_ = w.SetHeader("Connection", "close")
		_ = w.SetHeader(headerContentType, "application/json")
		_ = w.SetHeader(headerContentLength, strconv.Itoa(len(body)))
		w.addAccessControl()
		if err := w.Start(""); err != nil {
			return err
		}
		return w.Send(body)
	}
}

// parseArgs decodes the request body according to its content type and merges
// in the query string parameters.
func parseArgs(r *Request) (Args, error) {
	args := Args{Data: map[string]any{}, Params: r.PathParams}

	if len(r.Body) > 0 {
		contentType, _, _ := strings.Cut(r.Header(headerContentType), ";")
		switch strings.TrimSpace(contentType) {
		case "application/json":
			if err := json.Unmarshal(r.Body, &args.Data); err != nil {
				return Args{}, ErrBadRequest
			}
		case "application/x-www-form-urlencoded":
			form, err := parseForm(string(r.Body))
			if err != nil {
				return Args{}, ErrBadRequest
			}
			for k, v := range form {
				args.Data[k] = v
			}
		}
	}

	for k, v := range r.Query() {
		if len(v) > 0 {
			args.Data[k] = v[0]
		}
	}
	return args, nil
}

func parseForm(body string) (map[string]string, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, err
	}
	form := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}
	return form, nil
}
