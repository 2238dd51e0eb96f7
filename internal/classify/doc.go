// Package classify decides whether a probe response is the not-found page,
// a real resource or a block.
//
// Classification is a pure function of the response, the baseline and the
// configured strategy. Block detection runs first: a 429 status or an
// excerpt containing a block marker is never reported as a match, whatever
// its size.
package classify
