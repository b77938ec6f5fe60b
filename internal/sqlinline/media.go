package sqlinline

const QInsertMedia = `--sql 2173575f-ba98-48e5-b1e9-d241a9538895
insert into media_files (
  session_id, file_key, file_name, file_type, mime_type, file_size, source, metadata
)
values ($1::bigint, $2::text, $3::text, $4::text, $5::text, $6::bigint, $7::text, $8::jsonb)
returning
  id, session_id, file_key, file_name, file_type, mime_type, file_size, source, metadata, created_at;
`
