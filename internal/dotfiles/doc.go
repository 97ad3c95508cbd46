// Package dotfiles keeps shell aliases and environment variables in the
// encrypted record log and renders them as shell init scripts.
//
// Each alias or variable change is one record. The current set is the
// last-write-wins fold of every host's records for the tag, so a value set
// on one machine shows up on the others after a sync.
package dotfiles
