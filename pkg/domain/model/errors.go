package model

import "github.com/m-mizutani/goerr/v2"

// Error kinds shared across layers. Wrap them with goerr.Wrap and classify with errors.Is.
var (
	// ErrValidation is bad or missing required input
	ErrValidation = goerr.New("validation error")
	// ErrUpstream is a failure of the image source or the Slack API
	ErrUpstream = goerr.New("upstream error")
	// ErrPersistence is a failure of the user store
	ErrPersistence = goerr.New("persistence error")
	// ErrConfiguration is a required setting that is absent or malformed
	ErrConfiguration = goerr.New("configuration error")
)
