package blobstore

import "testing"

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		input      string
		wantBucket string
		wantPrefix string
	}{
		{"my-bucket", "my-bucket", ""},
		{"my-bucket/pkgs", "my-bucket", "pkgs"},
		{"my-bucket/a/b/c", "my-bucket", "a/b/c"},
		{"s3://my-bucket/pkgs", "my-bucket", "pkgs"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			bucket, prefix := ParseS3Path(tt.input)
			if bucket != tt.wantBucket || prefix != tt.wantPrefix {
				t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)",
					tt.input, bucket, prefix, tt.wantBucket, tt.wantPrefix)
			}
		})
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("expected error for empty bucket")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestS3Config_Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "gcs/_ray_pkg_x.zip"},
		{"mirror", "mirror/gcs/_ray_pkg_x.zip"},
		{"/mirror/", "mirror/gcs/_ray_pkg_x.zip"},
	}
	for _, tt := range tests {
		cfg := S3Config{Bucket: "b", Prefix: tt.prefix}
		if got := cfg.Key("gcs", "_ray_pkg_x.zip"); got != tt.want {
			t.Errorf("Key with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
