// Package stopwords learns stop words from document frequency. Downloaders
// report each crawled page's unique words; a word found in more than 90% of
// at least 100 documents is reported as a stop word.
package stopwords
