//go:build tools

package tools

// Mocks are generated with the mockery binary (not via go run), so no
// blank import is needed. Regenerate with:
//
//	mockery --dir pkg/callback --name Listener --output pkg/callback/mocks --with-expecter
//	mockery --dir pkg/policy --name Configurer --output pkg/policy/mocks --with-expecter
//	mockery --dir pkg/discovery --name Advertiser --output pkg/discovery/mocks --with-expecter
