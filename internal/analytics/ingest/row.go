// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ingest turns staged provider files into cache state: it cleans the
// staging directory, decompresses fetched archives, parses the tab-separated
// reports into fixed-schema rows and publishes metadata + rows per
// (platform, date) under the raw cache keys.
package ingest

import "strconv"

// RawRow is one line of a provider trend report. The provider delivers a
// fixed 51-column tab-separated schema; the field order below is the column
// order and the JSON tags are the provider's column names, which downstream
// consumers rely on.
type RawRow struct {
	LabelID                  string `json:"label_id"`
	ProductID                string `json:"product_id"`
	AssetID                  string `json:"asset_id"`
	Date                     string `json:"date"`
	Territory                string `json:"territory"`
	NumberOfDownloads        string `json:"number_of_downloads"`
	NumberOfStreams          string `json:"number_of_streams"`
	NumberOfListeners        string `json:"number_of_listeners"`
	NumberOfSaves            string `json:"number_of_saves"`
	ReportingOrganizationID  string `json:"reporting_organization_id"`
	AssetDuration            string `json:"asset_duration"`
	StreamDeviceType         string `json:"stream_device_type"`
	StreamDeviceOS           string `json:"stream_device_os"`
	StreamLength             string `json:"stream_length"`
	StreamSource             string `json:"stream_source"`
	StreamSourceURI          string `json:"stream_source_uri"`
	UserID                   string `json:"user_id"`
	UserRegion               string `json:"user_region"`
	UserRegionDetail         string `json:"user_region_detail"`
	UserGender               string `json:"user_gender"`
	UserBirthYear            string `json:"user_birth_year"`
	UserAgeGroup             string `json:"user_age_group"`
	UserCountry              string `json:"user_country"`
	UserAccessType           string `json:"user_access_type"`
	UserAccountType          string `json:"user_account_type"`
	TrackID                  string `json:"track_id"`
	PrimaryArtistIDs         string `json:"primary_artist_ids"`
	ISRC                     string `json:"isrc"`
	UPC                      string `json:"upc"`
	Shuffle                  string `json:"shuffle"`
	Repeat                   string `json:"repeat"`
	Cached                   string `json:"cached"`
	Completion               string `json:"completion"`
	AppleContainerType       string `json:"apple_container_type"`
	AppleContainerSubType    string `json:"apple_container_sub_type"`
	AppleSourceOfStream      string `json:"apple_source_of_stream"`
	YoutubeChannelID         string `json:"youtube_channel_id"`
	VideoID                  string `json:"video_id"`
	YoutubeClaimedStatus     string `json:"youtube_claimed_status"`
	SubscribedStatus         string `json:"subscribed_status"`
	AssetType                string `json:"asset_type"`
	DiscoveryFlag            string `json:"discovery_flag"`
	CurrentMembershipWeek    string `json:"current_membership_week"`
	FirstTrialMembershipWeek string `json:"first_trial_membership_week"`
	FirstTrialMembership     string `json:"first_trial_membership"`
	FirstPaidMembershipWeek  string `json:"first_paid_membership_week"`
	FirstPaidMembership      string `json:"first_paid_membership"`
	TotalUserStreams         string `json:"total_user_streams"`
	YoutubeUploaderType      string `json:"youtube_uploader_type"`
	AudioFormat              string `json:"audio_format"`
	DSPData                  string `json:"dsp_data"`
}

// ColumnCount is the provider's fixed schema width.
const ColumnCount = 51

// headerFirstColumn identifies a header line in a report file.
const headerFirstColumn = "label_id"

// RowFromColumns maps a split TSV line positionally onto a RawRow.
// Short lines leave the remaining fields blank; extra columns are dropped.
func RowFromColumns(cols []string) RawRow {
	at := func(i int) string {
		if i < len(cols) {
			return cols[i]
		}
		return ""
	}
	return RawRow{
		LabelID:                  at(0),
		ProductID:                at(1),
		AssetID:                  at(2),
		Date:                     at(3),
		Territory:                at(4),
		NumberOfDownloads:        at(5),
		NumberOfStreams:          at(6),
		NumberOfListeners:        at(7),
		NumberOfSaves:            at(8),
		ReportingOrganizationID:  at(9),
		AssetDuration:            at(10),
		StreamDeviceType:         at(11),
		StreamDeviceOS:           at(12),
		StreamLength:             at(13),
		StreamSource:             at(14),
		StreamSourceURI:          at(15),
		UserID:                   at(16),
		UserRegion:               at(17),
		UserRegionDetail:         at(18),
		UserGender:               at(19),
		UserBirthYear:            at(20),
		UserAgeGroup:             at(21),
		UserCountry:              at(22),
		UserAccessType:           at(23),
		UserAccountType:          at(24),
		TrackID:                  at(25),
		PrimaryArtistIDs:         at(26),
		ISRC:                     at(27),
		UPC:                      at(28),
		Shuffle:                  at(29),
		Repeat:                   at(30),
		Cached:                   at(31),
		Completion:               at(32),
		AppleContainerType:       at(33),
		AppleContainerSubType:    at(34),
		AppleSourceOfStream:      at(35),
		YoutubeChannelID:         at(36),
		VideoID:                  at(37),
		YoutubeClaimedStatus:     at(38),
		SubscribedStatus:         at(39),
		AssetType:                at(40),
		DiscoveryFlag:            at(41),
		CurrentMembershipWeek:    at(42),
		FirstTrialMembershipWeek: at(43),
		FirstTrialMembership:     at(44),
		FirstPaidMembershipWeek:  at(45),
		FirstPaidMembership:      at(46),
		TotalUserStreams:         at(47),
		YoutubeUploaderType:      at(48),
		AudioFormat:              at(49),
		DSPData:                  at(50),
	}
}

// Streams parses number_of_streams as a play count. Absent or unparseable
// values contribute 0, never an error.
func (r *RawRow) Streams() int64 {
	n, err := strconv.ParseInt(r.NumberOfStreams, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
