// Package policy evaluates advisory Rego policies against finished
// theme transitions. Built-in policies cover the transition duration
// budget, the reduced motion preference, and the contrast floor;
// additional policies load from .rego or .json files. Findings
// annotate a transition's result but never block it.
package policy
