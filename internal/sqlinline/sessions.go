package sqlinline

const QInsertSession = `--sql f0f94411-6104-46ff-9de5-7ddde7658bb7
insert into pipeline_sessions (
  user_id, chat_id, source, status, current_step,
  product_name, product_articles, product_description, marketplace,
  idea_id, voice_script_id, video_prompt_id
)
values (0, 0, $1::text, 'created', null, $2::text, $3::jsonb, $4::text, $5::text, $6::bigint, $7::bigint, $8::bigint)
returning
  id, user_id, chat_id, source, status, current_step, resume_url, error_message, error_step,
  idea_id, voice_script_id, video_prompt_id, product_name, product_articles, product_description,
  marketplace, created_at, updated_at;
`

const QSelectSession = `--sql 9d70f052-9c97-4a7a-97e1-fed086961b37
select
  id, user_id, chat_id, source, status, current_step, resume_url, error_message, error_step,
  idea_id, voice_script_id, video_prompt_id, product_name, product_articles, product_description,
  marketplace, created_at, updated_at
from pipeline_sessions
where id = $1::bigint;
`

// QListSessions takes the quoted sort column and the direction through
// fmt.Sprintf; both come from a whitelist.
const QListSessions = `--sql c3608de4-a25c-4cbc-954f-ebe84705d4d2
select
  id, user_id, chat_id, source, status, current_step, resume_url, error_message, error_step,
  idea_id, voice_script_id, video_prompt_id, product_name, product_articles, product_description,
  marketplace, created_at, updated_at
from pipeline_sessions
where ($1::text is null or status = $1::text)
  and ($2::text is null or marketplace = $2::text)
  and ($3::text is null or source = $3::text)
  and ($4::text is null or product_name ilike '%%' || $4::text || '%%')
order by %s %s
limit $5::int offset $6::int;
`

const QCountSessions = `--sql 7c82360b-bdcc-43ff-bfdc-083894b00006
select count(*)::int
from pipeline_sessions
where ($1::text is null or status = $1::text)
  and ($2::text is null or marketplace = $2::text)
  and ($3::text is null or source = $3::text)
  and ($4::text is null or product_name ilike '%' || $4::text || '%');
`

const QTransitionSession = `--sql df6438da-e598-4507-b1b6-a9126be84f3f
update pipeline_sessions
set status = $2::text,
    current_step = coalesce($3::text, current_step),
    error_message = coalesce($4::text, error_message),
    resume_url = case when $2::text in ('published', 'cancelled') then null else resume_url end,
    updated_at = now()
where id = $1::bigint
  and status = any($5::text[])
returning
  id, user_id, chat_id, source, status, current_step, resume_url, error_message, error_step,
  idea_id, voice_script_id, video_prompt_id, product_name, product_articles, product_description,
  marketplace, created_at, updated_at;
`

const QApplySessionUpdate = `--sql 8d5e90b8-2200-45a7-94a1-762e94aff089
update pipeline_sessions
set status = $2::text,
    current_step = coalesce($3::text, current_step),
    error_message = case when $2::text = 'error' then coalesce($4::text, error_message) else $4::text end,
    error_step = case when $2::text = 'error' then coalesce($5::text, error_step) else $5::text end,
    resume_url = case when $2::text in ('published', 'cancelled') then null else nullif(btrim($6::text), '') end,
    updated_at = now()
where id = $1::bigint
  and status not in ('published', 'cancelled')
returning
  id, user_id, chat_id, source, status, current_step, resume_url, error_message, error_step,
  idea_id, voice_script_id, video_prompt_id, product_name, product_articles, product_description,
  marketplace, created_at, updated_at;
`
