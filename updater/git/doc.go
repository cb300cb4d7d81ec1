// Package git provides git repository operations and a strategy interface for
// creating pull requests across different git hosting platforms.
//
// The Provider interface abstracts PR creation. Implementations exist for
// GitHub, GitLab, and Bitbucket Server in sub-packages. ProviderFunc is a
// convenience adapter that lets plain functions satisfy the interface.
//
// Repo wraps the existing workspace checkout the action operates on, with
// methods for branching, committing, diffing, and pushing.
package git
