// Package feeds reads entries from configured sources. RSS 2.0 and Atom 1.0
// documents are parsed with encoding/xml; HTML listing pages are scraped with
// goquery using the common article/post class conventions.
package feeds
