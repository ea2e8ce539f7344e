// Package authcore is an embeddable credential and token engine with an
// OAuth2-style token endpoint. It issues opaque bearer tokens in the wire
// form "id|secret", supports the resource owner password and refresh token
// grants, and negotiates scopes against the authorized set stored on the
// calling client's credential.
//
// The package layers cleanly: storage holds the persistence interfaces with
// in-memory and Valkey backends, credential manages secret material and
// scope authorization, token mints and verifies opaque tokens, server runs
// the grant state machine, and this root package binds it all to HTTP.
//
// Basic usage:
//
//	store := memory.New()
//	enc, _ := security.NewEncryptor(key)
//	creds, _ := credential.NewService(store, store, enc, nil, logger)
//	tokens, _ := token.NewService(store, enc, token.Config{}, logger)
//	srv, _ := server.New(creds, tokens, dir, logger)
//	handler, _ := authcore.NewHandler(srv, authcore.Config{Issuer: issuer})
//	handler.RegisterRoutes(mux)
package authcore
