package main

import (
	"strconv"

	"github.com/spf13/viper"

	"folder2pdf/pdf"
)

// layoutOptions builds pdf.Options from string settings keyed by flag name.
func layoutOptions(lookup func(key string) string) (pdf.Options, error) {
	size, err := pdf.ParsePageSize(lookup("page-size"))
	if err != nil {
		return pdf.Options{}, err
	}

	landscape, err := parseBool(lookup, "landscape")
	if err != nil {
		return pdf.Options{}, err
	}
	if landscape {
		size = size.Landscape()
	}

	opts := pdf.Options{PageSize: size}
	if opts.FitToPage, err = parseBool(lookup, "fit-to-page"); err != nil {
		return pdf.Options{}, err
	}
	if opts.MaintainAspectRatio, err = parseBool(lookup, "keep-aspect"); err != nil {
		return pdf.Options{}, err
	}
	if opts.Quality, err = parseInt(lookup, "quality"); err != nil {
		return pdf.Options{}, err
	}
	if opts.DPI, err = parseInt(lookup, "dpi"); err != nil {
		return pdf.Options{}, err
	}
	return opts, opts.Validate()
}

func parseBool(lookup func(string) string, key string) (bool, error) {
	v, err := strconv.ParseBool(lookup(key))
	if err != nil {
		return false, &pdf.OptionsError{Field: key, Reason: "expected true or false, got " + strconv.Quote(lookup(key))}
	}
	return v, nil
}

func parseInt(lookup func(string) string, key string) (int, error) {
	v, err := strconv.Atoi(lookup(key))
	if err != nil {
		return 0, &pdf.OptionsError{Field: key, Reason: "expected an integer, got " + strconv.Quote(lookup(key))}
	}
	return v, nil
}

// viperLookup reads settings from flags and the environment.
func viperLookup(key string) string {
	return viper.GetString(key)
}
