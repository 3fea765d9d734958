// Package language normalizes the language codes reported for audio and
// subtitle streams and renders them for display.
//
// Servers report whatever the container carries: ISO 639-1, ISO 639-2 (both
// terminology and bibliographic forms), full English words, or the "unknown"
// sentinel. Canonical folds these onto one code, DisplayName uses x/text for
// English names, and Match lets CLI users type "en" when the listing says
// "eng".
package language
