// Package github implements a git.Provider that creates pull requests on
// GitHub (cloud or enterprise). Configure with a Config containing the
// repository owner, name, and personal access token. Set EnterpriseHost for
// GitHub Enterprise installations.
package github
