// Package matchmaker wires the Auntie assistant with its tools and the
// notification sender. RunMatch returns the answer only, MatchAndNotify also
// reports the delivery outcome for the form.
package matchmaker
