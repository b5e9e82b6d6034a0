// Package catalog searches the external clip catalog for candidate clips
// whose subtitle text contains a vocabulary word.
package catalog
