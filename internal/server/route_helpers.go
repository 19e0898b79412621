package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/trendreel/internal/handlers"
)

// methods maps HTTP methods to the handlers serving one path.
type methods map[string]http.HandlerFunc

// ServeHTTP dispatches on r.Method, answering 405 with an Allow header otherwise.
func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if handler, ok := m[r.Method]; ok {
		handler(w, r)
		return
	}
	w.Header().Set("Allow", m.allow())
	handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (m methods) allow() string {
	names := make([]string, 0, len(m))
	for method := range m {
		names = append(names, method)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// resource routes the item paths under one prefix:
//
//	{prefix}{id}          -> item
//	{prefix}{id}/{action} -> actions[action]
//
// Anything else is a 404.
type resource struct {
	prefix  string
	item    methods
	actions map[string]methods
}

func (res resource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, res.prefix)
	switch len(segments) {
	case 1:
		if res.item != nil {
			res.item.ServeHTTP(w, r)
			return
		}
	case 2:
		if action, ok := res.actions[segments[1]]; ok {
			action.ServeHTTP(w, r)
			return
		}
	}
	handlers.WriteError(w, http.StatusNotFound, "Not found")
}
