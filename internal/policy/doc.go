// Package policy matches an organization's spending policies against a
// transaction.
//
// Policies are evaluated in stored order and the first one whose expression
// evaluates to true declines the transaction. An expression may be prefixed
// with a merchant name and a colon ("Coffee Shop: amount > 500") to scope
// it to that merchant. A policy that fails to evaluate is skipped, so one
// malformed rule never blocks the remaining ones.
package policy
