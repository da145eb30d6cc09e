package gcs

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://bucket/path/to/file.pdf", "bucket", "path/to/file.pdf", false},
		{"gs://bucket/file.pdf", "bucket", "file.pdf", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/file.pdf", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.bucket || object != tt.object {
				t.Errorf("ParseURI(%q) = %q, %q; want %q, %q", tt.uri, bucket, object, tt.bucket, tt.object)
			}
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/file.pdf", "file.pdf"},
		{"gs://bucket/file.pdf", "file.pdf"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		if got := FilenameFromURI(tt.uri); got != tt.want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestArchiveObject(t *testing.T) {
	tests := []struct {
		prefix string
		runID  string
		name   string
		want   string
	}{
		{"results", "r1", "statement.pdf", "results/statement-r1.json"},
		{"", "r2", "dir/jan.pdf", "jan-r2.json"},
		{"a/b", "r3", "noext", "a/b/noext-r3.json"},
		{"results", "r4", "", "results/r4.json"},
	}
	for _, tt := range tests {
		if got := ArchiveObject(tt.prefix, tt.runID, tt.name); got != tt.want {
			t.Errorf("ArchiveObject(%q, %q, %q) = %q, want %q", tt.prefix, tt.runID, tt.name, got, tt.want)
		}
	}
	// Same file name, different runs.
	if ArchiveObject("results", "r1", "jan.pdf") == ArchiveObject("results", "r2", "jan.pdf") {
		t.Error("runs of the same file share an archive object")
	}
	if got := URI("b", "o/x.json"); got != "gs://b/o/x.json" {
		t.Errorf("URI = %q", got)
	}
}
